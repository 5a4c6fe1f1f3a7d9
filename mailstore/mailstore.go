// Package mailstore is the MailStore capability: querying threads by time
// range and filter flags, and applying label/read/archive side effects.
// The real provider glue (Gmail API calls, OAuth, etc.) is not implemented
// here; this package defines the capability surface and the query grammar
// any adapter must accept.
package mailstore

import "github.com/inboxtriage/engine/domain"

// Store is the MailStore capability the engine is built against.
type Store interface {
	// Search returns up to limit threads matching the query string, using
	// the grammar documented in package mailstore/query
	// (after:, before:, is:unread, in:inbox, rfc822msgid:).
	Search(query string, limit int) ([]domain.EmailThread, error)

	// ResolveMessage finds a message by provider id, falling back to
	// RFC-822 message-id lookup. ok is false if neither resolves.
	ResolveMessage(id, rfc822ID string) (thread domain.EmailThread, message domain.Message, ok bool, err error)

	// ApplyLabel adds a label to a message; if the message cannot be
	// resolved it is applied to the thread instead.
	ApplyLabel(emailID, rfc822ID, threadID, label string) error

	// MarkRead marks a single message read.
	MarkRead(emailID string) error

	// RemoveFromInbox archives a thread ("remove uninteresting from
	// inbox"). Callers MUST have already applied the archival safety
	// guards (starred / user-labeled / provider-important) before calling.
	RemoveFromInbox(threadID string) error

	// ThreadLabels returns the labels currently on a thread, used by the
	// archival safety guard.
	ThreadLabels(threadID string) ([]string, error)
}
