package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/inboxtriage/engine/blobstore"
	"github.com/inboxtriage/engine/domain"
	"github.com/inboxtriage/engine/kvstore"
	"github.com/inboxtriage/engine/llmclient"
	"github.com/inboxtriage/engine/mailstore"
	"github.com/inboxtriage/engine/storage"
	"github.com/inboxtriage/engine/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time forward deterministically.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

// fakeMailer records every send for assertions instead of talking SMTP.
type fakeMailer struct {
	sent    []sentMail
	failNext bool
}

type sentMail struct{ to, subject, body string }

func (m *fakeMailer) Send(to, subject, body, senderName string) error {
	if m.failNext {
		m.failNext = false
		return assert.AnError
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

// fakeDigest renders a fixed marker so tests can assert it was invoked.
type fakeDigest struct{}

func (fakeDigest) Render(acc domain.AccumulatorFile) (string, error) {
	return "rendered digest", nil
}

// fakeLLM classifies every thread's first message as mustDo, so runBatcher
// always produces exactly one finding per thread.
type fakeLLM struct{ calls int }

func (f *fakeLLM) Classify(ctx context.Context, batch llmclient.BatchInput) (domain.ClassifyResult, error) {
	f.calls++
	var result domain.ClassifyResult
	for _, t := range batch.Threads {
		if len(t.Messages) == 0 {
			continue
		}
		result.MustDo = append(result.MustDo, domain.Finding{
			EmailID: t.Messages[0].ID,
			Subject: t.Messages[0].Subject,
			Topic:   "test",
		})
	}
	return result, nil
}

func newTestStores(t *testing.T) (kvstore.Store, blobstore.Store) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	kv, err := kvstore.NewBoltStore(db)
	require.NoError(t, err)
	blobs, err := blobstore.NewBoltStore(db)
	require.NoError(t, err)
	return kv, blobs
}

func newTestEngine(t *testing.T, mail mailstore.Store, now time.Time) (*Engine, *fakeMailer) {
	t.Helper()
	kv, blobs := newTestStores(t)
	mailer := &fakeMailer{}
	e := New(kv, blobs, mail, &fakeLLM{}, trigger.NewInProcess(), mailer, fakeDigest{}, Config{
		LLM:           LLMConfig{APIKey: "sk-test"},
		NotifyAddress: "me@example.com",
		Policy:        PolicyConfig{},
		DispatcherInterval: time.Hour,
	})
	e.Clock = &fakeClock{now: now}
	return e, mailer
}

func threadAt(id string, when time.Time) domain.EmailThread {
	return domain.EmailThread{
		ID:           id,
		FirstSubject: "subject-" + id,
		Messages: []domain.Message{
			{ID: id + "-m1", RFC822ID: "<" + id + "@x>", Sender: "someone@example.com", Subject: "subject-" + id, Date: when},
		},
	}
}

func TestEngine_EnsureDispatcher_InstallsRecurringOnce(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, mailstore.NewMemory(nil), now)

	require.NoError(t, e.EnsureDispatcherForCLI())
	require.NoError(t, e.EnsureDispatcherForCLI())

	installed, err := e.Triggers.List()
	require.NoError(t, err)
	assert.Len(t, installed, 1)
	assert.Equal(t, trigger.KindRecurring, installed[0].Kind)
}

func TestEngine_Start_RefusesWhileLockHeld(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, mailstore.NewMemory(nil), now)

	require.NoError(t, acquireLock(e.KV, domain.LockPassive, now))

	tr := TimeRange{Symbol: "1day", Start: now.Add(-24 * time.Hour), End: now}
	err := e.Start(tr)
	require.Error(t, err)

	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, ErrLockContention, engErr.Kind)
}

func TestEngine_Start_MissingAPIKeyRefuses(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, mailstore.NewMemory(nil), now)
	e.Config.LLM.APIKey = ""

	err := e.Start(TimeRange{Symbol: "1day", Start: now.Add(-24 * time.Hour), End: now})
	require.Error(t, err)
	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, ErrConfiguration, engErr.Kind)
}

func TestEngine_ActiveRun_CompletesAcrossChunks(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	mail := mailstore.NewMemory([]domain.EmailThread{
		threadAt("t1", now.Add(-5*24*time.Hour)),
		threadAt("t2", now.Add(-1*24*time.Hour)),
	})
	e, mailer := newTestEngine(t, mail, now)

	tr := TimeRange{Symbol: "6days", Start: now.Add(-6 * 24 * time.Hour), End: now}
	require.NoError(t, e.Start(tr))

	status, err := readStatus(e.KV)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, status)

	// Drive every chunk to completion instead of waiting on the installed
	// one-off trigger's real timer.
	for i := 0; i < 10; i++ {
		status, err := readStatus(e.KV)
		require.NoError(t, err)
		if status != domain.StatusRunning {
			break
		}
		require.NoError(t, e.Step())
	}

	stats, ok, err := e.LatestRunStats()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StatusCompleted, stats.Status)
	assert.Equal(t, 2, stats.MustDo)

	_, locked, err := readLock(e.KV)
	require.NoError(t, err)
	assert.False(t, locked)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Inbox triage: scan complete", mailer.sent[0].subject)
}

func TestEngine_CheckAndHandleTimeout_StuckChunk(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	e, mailer := newTestEngine(t, mailstore.NewMemory(nil), now)

	require.NoError(t, acquireLock(e.KV, domain.LockActive, now))
	require.NoError(t, writeStatus(e.KV, domain.StatusRunning, "running"))
	require.NoError(t, writeActiveChunkState(e.KV, activeChunkState{WindowStart: now.Add(-time.Hour), WindowEnd: now, Index: 0, Total: 1}))
	require.NoError(t, markChunkStarting(e.KV, now.Add(-ProcessingTimeout-time.Minute)))

	fired, err := e.checkAndHandleTimeout(now)
	require.NoError(t, err)
	assert.True(t, fired)

	stats, ok, err := e.LatestRunStats()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StatusTimeout, stats.Status)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Inbox triage: run timed out", mailer.sent[0].subject)
}

func TestEngine_CheckAndHandleTimeout_NoActiveRunIsNoop(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, mailstore.NewMemory(nil), now)

	fired, err := e.checkAndHandleTimeout(now)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestEngine_PassivePass_IgnoresSelfAuthoredAndAddonMention(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	threads := []domain.EmailThread{
		{ID: "self", Messages: []domain.Message{{ID: "s1", Sender: "me@example.com", Subject: "note to self", Date: now.Add(-time.Hour)}}},
		{ID: "addon", Messages: []domain.Message{{ID: "a1", Sender: "x@y.com", Subject: "Re: InboxTriage setup", Date: now.Add(-time.Hour)}}},
		{ID: "real", Messages: []domain.Message{{ID: "r1", Sender: "billing@co.com", Subject: "Invoice due", Date: now.Add(-time.Hour)}}},
	}
	mail := mailstore.NewMemory(threads)
	e, _ := newTestEngine(t, mail, now)
	e.Config.AddonName = "InboxTriage"

	require.NoError(t, e.PassivePass())

	acc, _, err := loadAccumulator(e.KV, e.Blobs)
	require.NoError(t, err)
	require.Len(t, acc.MustDo, 1)
	assert.Equal(t, "r1", acc.MustDo[0].EmailID)
}

func TestEngine_PassivePass_LockContentionIsSilent(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, mailstore.NewMemory(nil), now)

	require.NoError(t, acquireLock(e.KV, domain.LockActive, now))
	assert.NoError(t, e.PassivePass())
}

func TestMaybeSendDailyDigest_OutsideWindowDoesNotSend(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	e, mailer := newTestEngine(t, mailstore.NewMemory(nil), now)

	_, handle, err := loadAccumulator(e.KV, e.Blobs)
	require.NoError(t, err)
	require.NoError(t, writeAccumulator(e.Blobs, handle, domain.AccumulatorFile{MustDo: []domain.Finding{{EmailID: "x"}}}))

	require.NoError(t, e.maybeSendDailyDigest(now))
	assert.Empty(t, mailer.sent)
}

func TestMaybeSendDailyDigest_WithinWindowSendsOnce(t *testing.T) {
	now := time.Date(2026, 7, 31, 22, 0, 0, 0, time.UTC)
	e, mailer := newTestEngine(t, mailstore.NewMemory(nil), now)

	_, handle, err := loadAccumulator(e.KV, e.Blobs)
	require.NoError(t, err)
	require.NoError(t, writeAccumulator(e.Blobs, handle, domain.AccumulatorFile{MustDo: []domain.Finding{{EmailID: "x"}}}))

	require.NoError(t, e.maybeSendDailyDigest(now))
	require.Len(t, mailer.sent, 1)

	acc, _, err := loadAccumulator(e.KV, e.Blobs)
	require.NoError(t, err)
	assert.True(t, acc.Empty())

	// Second call same day must not resend even if re-populated.
	require.NoError(t, writeAccumulator(e.Blobs, handle, domain.AccumulatorFile{MustDo: []domain.Finding{{EmailID: "y"}}}))
	require.NoError(t, e.maybeSendDailyDigest(now))
	assert.Len(t, mailer.sent, 1)
}

func TestMaybeSendDailyDigest_SendFailureLeavesStateIntact(t *testing.T) {
	now := time.Date(2026, 7, 31, 22, 0, 0, 0, time.UTC)
	e, mailer := newTestEngine(t, mailstore.NewMemory(nil), now)
	mailer.failNext = true

	_, handle, err := loadAccumulator(e.KV, e.Blobs)
	require.NoError(t, err)
	require.NoError(t, writeAccumulator(e.Blobs, handle, domain.AccumulatorFile{MustDo: []domain.Finding{{EmailID: "x"}}}))

	require.NoError(t, e.maybeSendDailyDigest(now))
	assert.Empty(t, mailer.sent)

	acc, _, err := loadAccumulator(e.KV, e.Blobs)
	require.NoError(t, err)
	assert.False(t, acc.Empty())

	lastSummary, err := readLastSummaryDate(e.KV)
	require.NoError(t, err)
	assert.Empty(t, lastSummary)
}

func TestResolveTimeRange(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	tr, err := ResolveTimeRange("7days", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-7*24*time.Hour), tr.Start)
	assert.Equal(t, now, tr.End)

	tr, err = ResolveTimeRange("1day", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour), tr.Start)

	_, err = ResolveTimeRange("bogus", now)
	assert.Error(t, err)
}

func TestPackBatches_SplitsOversizedThreadAlone(t *testing.T) {
	huge := domain.EmailThread{ID: "huge", Messages: []domain.Message{{Body: string(make([]byte, int(MaxTokens/TokensPerChar)+1000))}}}
	small := domain.EmailThread{ID: "small", Messages: []domain.Message{{Body: "hi"}}}

	batches := packBatches([]domain.EmailThread{huge, small})
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 1)
	assert.Equal(t, "huge", batches[0][0].ID)
}

func TestIsIgnored(t *testing.T) {
	assert.True(t, isIgnored(domain.Message{Sender: "Me@Example.com"}, "me@example.com", ""))
	assert.True(t, isIgnored(domain.Message{Subject: "Re: MyAddon digest"}, "", "MyAddon"))
	assert.False(t, isIgnored(domain.Message{Sender: "other@x.com", Subject: "hi"}, "me@example.com", "MyAddon"))
}

func TestWriteHighWaterMark_NeverMovesBackward(t *testing.T) {
	kv, _ := newTestStores(t)
	later := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	require.NoError(t, writeHighWaterMark(kv, later, "late-id"))
	require.NoError(t, writeHighWaterMark(kv, earlier, "early-id"))

	ts, id, err := readHighWaterMark(kv)
	require.NoError(t, err)
	assert.Equal(t, later.Unix(), ts.Unix())
	assert.Equal(t, "late-id", id)
}
