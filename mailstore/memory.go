package mailstore

import (
	"fmt"
	"sort"
	"time"

	"github.com/inboxtriage/engine/domain"
	"github.com/inboxtriage/engine/mailstore/query"
)

// Memory is a reference Store implementation backed by an in-memory
// thread list. It is the stand-in for real mail-provider glue, and is
// what engine tests and examples run against.
type Memory struct {
	Threads []domain.EmailThread
	labels  map[string][]string // threadID -> labels
}

// NewMemory builds a Memory store over the given threads.
func NewMemory(threads []domain.EmailThread) *Memory {
	return &Memory{Threads: threads, labels: map[string][]string{}}
}

func (m *Memory) Search(q string, limit int) ([]domain.EmailThread, error) {
	parsed, err := query.Parse(q)
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}

	var out []domain.EmailThread
	for _, th := range m.Threads {
		var kept []domain.Message
		for _, msg := range th.Messages {
			if parsed.After != nil && msg.Date.Before(*parsed.After) {
				continue
			}
			if parsed.Before != nil && !msg.Date.Before(*parsed.Before) {
				continue
			}
			if parsed.RFC822MsgID != "" && msg.RFC822ID != parsed.RFC822MsgID {
				continue
			}
			kept = append(kept, msg)
		}
		if len(kept) == 0 {
			continue
		}
		cp := th
		cp.Messages = kept
		out = append(out, cp)
	}

	sort.Slice(out, func(i, j int) bool {
		return latest(out[i]).After(latest(out[j]))
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func latest(t domain.EmailThread) time.Time {
	var max time.Time
	for _, msg := range t.Messages {
		if msg.Date.After(max) {
			max = msg.Date
		}
	}
	return max
}

func (m *Memory) ResolveMessage(id, rfc822ID string) (domain.EmailThread, domain.Message, bool, error) {
	for _, th := range m.Threads {
		for _, msg := range th.Messages {
			if (id != "" && msg.ID == id) || (rfc822ID != "" && msg.RFC822ID == rfc822ID) {
				return th, msg, true, nil
			}
		}
	}
	return domain.EmailThread{}, domain.Message{}, false, nil
}

func (m *Memory) ApplyLabel(emailID, rfc822ID, threadID, label string) error {
	if label == "" {
		return nil
	}
	_, _, ok, _ := m.ResolveMessage(emailID, rfc822ID)
	key := threadID
	if ok && emailID != "" {
		key = emailID
	}
	m.labels[key] = appendUnique(m.labels[key], label)
	return nil
}

func (m *Memory) MarkRead(emailID string) error {
	for ti, th := range m.Threads {
		for mi, msg := range th.Messages {
			if msg.ID == emailID {
				m.Threads[ti].Messages[mi].Labels = appendUnique(msg.Labels, "read")
			}
		}
	}
	return nil
}

func (m *Memory) RemoveFromInbox(threadID string) error {
	m.labels[threadID] = appendUnique(m.labels[threadID], "archived")
	return nil
}

func (m *Memory) ThreadLabels(threadID string) ([]string, error) {
	return m.labels[threadID], nil
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
