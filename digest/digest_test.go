package digest

import (
	"strings"
	"testing"

	"github.com/inboxtriage/engine/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_DefaultTemplate(t *testing.T) {
	r := New("")
	acc := domain.AccumulatorFile{
		MustDo:         []domain.Finding{{Subject: "Pay invoice", Sender: "billing@co.com", Topic: "finance"}},
		MustKnow:       []domain.Finding{{Subject: "Office closed", Sender: "hr@co.com", Topic: "announcements"}},
		TotalProcessed: 12,
		FirstDate:      "2026-07-01",
		LastDate:       "2026-07-02",
	}

	out, err := r.Render(acc)
	require.NoError(t, err)
	assert.Contains(t, out, "Pay invoice")
	assert.Contains(t, out, "Office closed")
	assert.Contains(t, out, "12 messages processed")
}

func TestRender_CustomTemplate(t *testing.T) {
	r := New(`<p>{{.TotalProcessed}} done</p>`)
	out, err := r.Render(domain.AccumulatorFile{TotalProcessed: 3})
	require.NoError(t, err)
	assert.Equal(t, "<p>3 done</p>", out)
}

func TestRender_DistinctRenderersDoNotShareCachedTemplate(t *testing.T) {
	a := New(`A:{{.TotalProcessed}}`)
	b := New(`B:{{.TotalProcessed}}`)

	outA, err := a.Render(domain.AccumulatorFile{TotalProcessed: 1})
	require.NoError(t, err)
	outB, err := b.Render(domain.AccumulatorFile{TotalProcessed: 2})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(outA, "A:"))
	assert.True(t, strings.HasPrefix(outB, "B:"))
}

func TestRender_InvalidTemplate(t *testing.T) {
	r := New(`{{.Nonexistent.Deep}}`)
	_, err := r.Render(domain.AccumulatorFile{})
	assert.Error(t, err)
}
