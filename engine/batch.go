package engine

import (
	"context"
	"strings"

	"github.com/inboxtriage/engine/domain"
	"github.com/inboxtriage/engine/llmclient"
)

// batchPromptOverhead is the fixed per-batch token cost charged before any
// thread content, covering the cheap char-based estimator's fixed prompt
// overhead per batch.
const batchPromptOverhead = 500

// estimateTokens is the cheap char-based estimator.
func estimateTokens(t domain.EmailThread) int {
	chars := len(t.FirstSubject)
	for _, m := range t.Messages {
		chars += len(m.Subject) + len(m.Body) + len(m.Sender)
	}
	return int(float64(chars) * TokensPerChar)
}

// packBatches packs ordered (most-recent-first) threads into batches under
// MaxTokens. Any single thread exceeding the budget is submitted alone.
func packBatches(threads []domain.EmailThread) [][]domain.EmailThread {
	var batches [][]domain.EmailThread
	var current []domain.EmailThread
	budget := batchPromptOverhead

	for _, t := range threads {
		cost := estimateTokens(t)
		if cost+batchPromptOverhead > MaxTokens {
			if len(current) > 0 {
				batches = append(batches, current)
				current = nil
				budget = batchPromptOverhead
			}
			batches = append(batches, []domain.EmailThread{t})
			continue
		}
		if budget+cost > MaxTokens && len(current) > 0 {
			batches = append(batches, current)
			current = nil
			budget = batchPromptOverhead
		}
		current = append(current, t)
		budget += cost
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// isIgnored implements the ignore rules: self-authored messages, and
// messages whose subject contains the configured addon name
// (case-insensitive), never reach the LLM.
func isIgnored(msg domain.Message, selfAddress, addonName string) bool {
	if selfAddress != "" && strings.EqualFold(msg.Sender, selfAddress) {
		return true
	}
	if addonName != "" && strings.Contains(strings.ToLower(msg.Subject), strings.ToLower(addonName)) {
		return true
	}
	return false
}

// filterIgnored drops ignored messages from each thread, and drops threads
// left with no messages.
func filterIgnored(threads []domain.EmailThread, selfAddress, addonName string) []domain.EmailThread {
	var out []domain.EmailThread
	for _, t := range threads {
		var kept []domain.Message
		for _, m := range t.Messages {
			if !isIgnored(m, selfAddress, addonName) {
				kept = append(kept, m)
			}
		}
		if len(kept) == 0 {
			continue
		}
		cp := t
		cp.Messages = kept
		out = append(out, cp)
	}
	return out
}

// runBatcher is the batching, classification, and side-effects contract.
// It returns the merged ClassifyResult for this invocation and the set of
// threads with at least one finding; archival of thread-with-no-findings
// happens separately, after all batches, via archiveUninteresting.
func (e *Engine) runBatcher(ctx context.Context, threads []domain.EmailThread) (domain.ClassifyResult, map[string]bool, error) {
	var merged domain.ClassifyResult
	foundThread := map[string]bool{}

	for _, batch := range packBatches(threads) {
		if err := e.TokenLimiter.WaitN(ctx, clampBurst(estimateBatchTokens(batch), MaxTokens)); err != nil {
			return merged, nil, err
		}

		result, err := e.LLM.Classify(ctx, llmclient.BatchInput{
			Threads:        batch,
			MustDoTopics:   e.Config.Topics.MustDoTopics,
			MustKnowTopics: e.Config.Topics.MustKnowTopics,
			MustDoOther:    e.Config.Topics.MustDoOther,
			MustKnowOther:  e.Config.Topics.MustKnowOther,
		})
		if err != nil {
			// Malformed LLM output fails the whole batch (and therefore
			// the run); partial-batch loss from earlier batches in this
			// invocation is acceptable but must be reported via the
			// returned error.
			return merged, nil, newError(ErrLLMMalformed, "llm classify failed", err)
		}

		merged.Merge(result)
		e.applyLabels(result)
		if e.Config.Policy.MarkProcessedAsRead {
			e.markProcessedRead(result)
		}

		for _, f := range result.MustDo {
			foundThread[threadKeyForFinding(batch, f)] = true
		}
		for _, f := range result.MustKnow {
			foundThread[threadKeyForFinding(batch, f)] = true
		}
	}

	return merged, foundThread, nil
}

func estimateBatchTokens(batch []domain.EmailThread) int {
	total := batchPromptOverhead
	for _, t := range batch {
		total += estimateTokens(t)
	}
	return total
}

func clampBurst(n, max int) int {
	if n > max {
		return max
	}
	if n < 1 {
		return 1
	}
	return n
}

func threadKeyForFinding(batch []domain.EmailThread, f domain.Finding) string {
	for _, t := range batch {
		for _, m := range t.Messages {
			if m.ID == f.EmailID || (f.RFC822ID != "" && m.RFC822ID == f.RFC822ID) {
				return t.ID
			}
		}
	}
	return ""
}

// applyLabels resolves each finding's message by id, falling back to
// RFC-822 id, and as a last resort labels the containing thread.
// Side-effect failures are logged and never fail the run.
func (e *Engine) applyLabels(result domain.ClassifyResult) {
	e.applyLabelSet(result.MustDo, e.Config.Policy.MustDoLabel)
	e.applyLabelSet(result.MustKnow, e.Config.Policy.MustKnowLabel)
}

func (e *Engine) applyLabelSet(findings []domain.Finding, label string) {
	if label == "" {
		return
	}
	for _, f := range findings {
		thread, _, ok, resolveErr := e.Mail.ResolveMessage(f.EmailID, f.RFC822ID)
		if resolveErr != nil {
			e.log().Warnf("resolve message %s failed: %v", f.EmailID, resolveErr)
		}
		threadID := ""
		if ok {
			threadID = thread.ID
		}
		if err := e.Mail.ApplyLabel(f.EmailID, f.RFC822ID, threadID, label); err != nil {
			e.log().Warnf("apply label %q to %s failed: %v", label, f.EmailID, err)
		}
	}
}

func (e *Engine) markProcessedRead(result domain.ClassifyResult) {
	for _, f := range append(append([]domain.Finding{}, result.MustDo...), result.MustKnow...) {
		if err := e.Mail.MarkRead(f.EmailID); err != nil {
			e.log().Warnf("mark read %s failed: %v", f.EmailID, err)
		}
	}
}

// archiveUninteresting runs after all batches of the current invocation
// complete, over threads that produced no findings. It is the
// highest-cost safety boundary in the system: a thread is skipped if it
// contains any starred message, carries any user label, or is flagged
// important by the provider when that signal is available.
func (e *Engine) archiveUninteresting(threads []domain.EmailThread, foundThread map[string]bool) {
	if !e.Config.Policy.RemoveUninterestingFromInbox {
		return
	}
	for _, t := range threads {
		if foundThread[t.ID] {
			continue
		}
		if e.hasArchivalGuard(t) {
			continue
		}
		if err := e.Mail.RemoveFromInbox(t.ID); err != nil {
			e.log().Warnf("archive thread %s failed: %v", t.ID, err)
		}
	}
}

func (e *Engine) hasArchivalGuard(t domain.EmailThread) bool {
	for _, m := range t.Messages {
		if m.IsStarred || m.IsImportant {
			return true
		}
	}
	labels, err := e.Mail.ThreadLabels(t.ID)
	if err != nil {
		// Unknown label state: fail safe, never archive.
		return true
	}
	return len(labels) > 0
}
