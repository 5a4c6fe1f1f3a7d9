package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inboxtriage/engine/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.WriteHeader(status)
		if status >= 200 && status < 300 {
			_ = json.NewEncoder(w).Encode(chatResponse{
				Choices: []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				}{{Message: struct {
					Content string `json:"content"`
				}{Content: content}}},
			})
		}
	}))
}

func TestHTTPClient_Classify_Success(t *testing.T) {
	srv := chatServer(t, `{"mustDo":[{"subject":"Pay invoice"}],"mustKnow":[]}`, http.StatusOK)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "sk-test", "gpt-4o-mini", time.Second)
	result, err := c.Classify(context.Background(), BatchInput{
		Threads: []domain.EmailThread{{ID: "t1"}},
	})
	require.NoError(t, err)
	require.Len(t, result.MustDo, 1)
	assert.Equal(t, "Pay invoice", result.MustDo[0].Subject)
}

func TestHTTPClient_Classify_MalformedContent(t *testing.T) {
	srv := chatServer(t, `not json`, http.StatusOK)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "sk-test", "gpt-4o-mini", time.Second)
	_, err := c.Classify(context.Background(), BatchInput{})
	assert.Error(t, err)
}

func TestHTTPClient_Classify_ServerError(t *testing.T) {
	srv := chatServer(t, "", http.StatusInternalServerError)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "sk-test", "gpt-4o-mini", time.Second)
	_, err := c.Classify(context.Background(), BatchInput{})
	assert.Error(t, err)
}
