package mailstore

import (
	"testing"
	"time"

	"github.com/inboxtriage/engine/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleThreads() []domain.EmailThread {
	return []domain.EmailThread{
		{
			ID:           "t1",
			FirstSubject: "Invoice due",
			Messages: []domain.Message{
				{ID: "m1", RFC822ID: "<m1@x>", Sender: "billing@co.com", Date: time.Unix(1000, 0)},
			},
		},
		{
			ID:           "t2",
			FirstSubject: "Newsletter",
			Messages: []domain.Message{
				{ID: "m2", RFC822ID: "<m2@x>", Sender: "news@co.com", Date: time.Unix(2000, 0)},
			},
		},
	}
}

func TestMemory_Search_FiltersByAfter(t *testing.T) {
	m := NewMemory(sampleThreads())
	out, err := m.Search("after:1500", 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "t2", out[0].ID)
}

func TestMemory_Search_SortsNewestFirst(t *testing.T) {
	m := NewMemory(sampleThreads())
	out, err := m.Search("", 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "t2", out[0].ID)
	assert.Equal(t, "t1", out[1].ID)
}

func TestMemory_Search_RespectsLimit(t *testing.T) {
	m := NewMemory(sampleThreads())
	out, err := m.Search("", 1)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestMemory_ResolveMessage(t *testing.T) {
	m := NewMemory(sampleThreads())
	th, msg, ok, err := m.ResolveMessage("m1", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "t1", th.ID)
	assert.Equal(t, "m1", msg.ID)

	_, _, ok, err = m.ResolveMessage("missing", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_ApplyLabel_FallsBackToThread(t *testing.T) {
	m := NewMemory(sampleThreads())
	require.NoError(t, m.ApplyLabel("", "", "t1", "mustdo"))
	labels, err := m.ThreadLabels("t1")
	require.NoError(t, err)
	assert.Contains(t, labels, "mustdo")
}

func TestMemory_MarkRead(t *testing.T) {
	m := NewMemory(sampleThreads())
	require.NoError(t, m.MarkRead("m1"))
	assert.Contains(t, m.Threads[0].Messages[0].Labels, "read")
}

func TestMemory_RemoveFromInbox(t *testing.T) {
	m := NewMemory(sampleThreads())
	require.NoError(t, m.RemoveFromInbox("t2"))
	labels, err := m.ThreadLabels("t2")
	require.NoError(t, err)
	assert.Contains(t, labels, "archived")
}
