package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AllTerms(t *testing.T) {
	q, err := Parse(`after:1000 before:2000 is:unread in:inbox rfc822msgid:"<abc@x>"`)
	require.NoError(t, err)

	require.NotNil(t, q.After)
	assert.Equal(t, int64(1000), q.After.Unix())
	require.NotNil(t, q.Before)
	assert.Equal(t, int64(2000), q.Before.Unix())
	assert.True(t, q.IsUnread)
	assert.True(t, q.InInbox)
	assert.Equal(t, "<abc@x>", q.RFC822MsgID)
}

func TestParse_UnknownTermKept(t *testing.T) {
	q, err := Parse("from:someone is:unread")
	require.NoError(t, err)
	assert.False(t, q.InInbox)
	found := false
	for _, term := range q.Terms {
		if term.Key == "from" && term.Value == "someone" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestParse_InvalidTimestamp(t *testing.T) {
	_, err := Parse("after:notanumber")
	assert.Error(t, err)
}

func TestBuild_RoundTrip(t *testing.T) {
	after := time.Unix(1000, 0)
	q := Query{After: &after, IsUnread: true, InInbox: true, RFC822MsgID: "<id>"}
	s := Build(q)
	assert.Equal(t, "after:1000 is:unread in:inbox rfc822msgid:<id>", s)

	reparsed, err := Parse(s)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), reparsed.After.Unix())
	assert.True(t, reparsed.IsUnread)
	assert.True(t, reparsed.InInbox)
	assert.Equal(t, "<id>", reparsed.RFC822MsgID)
}
