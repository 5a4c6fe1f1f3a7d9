// Package domain holds the data shapes shared across the triage engine:
// mail threads handed to the LLM, the findings it returns, and the
// accumulator document that carries findings between digests.
package domain

import "time"

// Message is a single email within a thread.
type Message struct {
	ID         string
	RFC822ID   string
	Sender     string
	Subject    string
	Body       string
	Date       time.Time
	IsStarred  bool
	IsImportant bool
	Labels     []string
}

// EmailThread is a set of messages grouped under one subject line.
type EmailThread struct {
	ID           string
	FirstSubject string
	Messages     []Message
}

// Key returns the action/knowledge bucket a Finding was classified into.
type Key string

const (
	KeyAction    Key = "mustDo"
	KeyKnowledge Key = "mustKnow"
)

// Finding is one classified message.
type Finding struct {
	EmailID  string    `json:"emailId"`
	RFC822ID string    `json:"rfc822Id,omitempty"`
	Subject  string    `json:"subject"`
	Sender   string    `json:"sender"`
	Topic    string    `json:"topic"`
	Key      Key       `json:"key"`
	Date     time.Time `json:"date,omitempty"`
}

// ClassifyResult is what the LLM returns for one batch.
type ClassifyResult struct {
	MustDo   []Finding `json:"mustDo"`
	MustKnow []Finding `json:"mustKnow"`
}

// Merge concatenates another result onto this one (no dedup, per spec).
func (r *ClassifyResult) Merge(other ClassifyResult) {
	r.MustDo = append(r.MustDo, other.MustDo...)
	r.MustKnow = append(r.MustKnow, other.MustKnow...)
}

// AccumulatorFile is the durable JSON document of pending digest content.
type AccumulatorFile struct {
	MustDo         []Finding `json:"mustDo"`
	MustKnow       []Finding `json:"mustKnow"`
	TotalProcessed int       `json:"totalProcessed"`
	FirstDate      string    `json:"firstDate,omitempty"`
	LastDate       string    `json:"lastDate,omitempty"`
}

// Empty reports whether the accumulator has nothing worth a digest.
func (a *AccumulatorFile) Empty() bool {
	return a == nil || (len(a.MustDo) == 0 && len(a.MustKnow) == 0)
}

// Status is the tagged variant the active engine can be in. Absent KV key
// means "no active run", which is distinct from every named status.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusTimeout   Status = "timeout"
)

// LockKind identifies which workflow is holding the single persisted lock.
type LockKind string

const (
	LockActive  LockKind = "active"
	LockPassive LockKind = "passive"
)

// Lock is the persisted single-writer mutex record.
type Lock struct {
	Kind       LockKind  `json:"kind"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// RunStats is the UI-facing snapshot of the most recently terminated active
// run, replaced wholesale on each terminal transition.
type RunStats struct {
	Status     Status    `json:"status"`
	Message    string    `json:"message"`
	TimeRange  string    `json:"timeRange"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt"`
	ChunkTotal int       `json:"chunkTotal"`
	MustDo     int       `json:"mustDo"`
	MustKnow   int       `json:"mustKnow"`
}
