// Package llmclient is the LLMClient capability: an opaque classifier that
// takes a batch of threads plus topic configuration and returns a
// structured {mustDo[], mustKnow[]} result. Prompt engineering is out of
// scope; this package only owns the wire contract and transport.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/inboxtriage/engine/domain"
)

// BatchInput is one LLM call's worth of threads plus the topic config
// needed to classify them.
type BatchInput struct {
	Threads        []domain.EmailThread `json:"threads"`
	MustDoTopics   []string             `json:"mustDoTopics"`
	MustKnowTopics []string             `json:"mustKnowTopics"`
	MustDoOther    bool                 `json:"mustDoOther"`
	MustKnowOther  bool                 `json:"mustKnowOther"`
}

// Client is the LLMClient capability the engine is built against.
type Client interface {
	Classify(ctx context.Context, batch BatchInput) (domain.ClassifyResult, error)
}

// HTTPClient calls an OpenAI-compatible chat-completions-shaped endpoint
// and parses its JSON response into a ClassifyResult. The request/response
// plumbing (POST bound to the caller's context and an http.Client
// timeout, structured error wrapping) is
// grounded on webhook.Client.SendNotificationSync.
type HTTPClient struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
}

// NewHTTPClient builds an HTTPClient. timeout bounds every Classify call.
func NewHTTPClient(endpoint, apiKey, model string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify sends the batch to the configured endpoint and parses the
// model's JSON content into a ClassifyResult. Malformed JSON (from either
// the transport envelope or the model's own content) is surfaced as an
// error; callers MUST fail the whole batch on it.
func (c *HTTPClient) Classify(ctx context.Context, batch BatchInput) (domain.ClassifyResult, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: classifierSystemPrompt(batch)},
			{Role: "user", Content: mustMarshalThreads(batch.Threads)},
		},
	})
	if err != nil {
		return domain.ClassifyResult{}, fmt.Errorf("marshal llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.ClassifyResult{}, fmt.Errorf("build llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ClassifyResult{}, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.ClassifyResult{}, fmt.Errorf("llm returned status %d", resp.StatusCode)
	}

	var env chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return domain.ClassifyResult{}, fmt.Errorf("decode llm envelope: %w", err)
	}
	if len(env.Choices) == 0 {
		return domain.ClassifyResult{}, fmt.Errorf("llm returned no choices")
	}

	var result domain.ClassifyResult
	if err := json.Unmarshal([]byte(env.Choices[0].Message.Content), &result); err != nil {
		return domain.ClassifyResult{}, fmt.Errorf("llm content is not valid classify JSON: %w", err)
	}
	return result, nil
}

func mustMarshalThreads(threads []domain.EmailThread) string {
	b, _ := json.Marshal(threads)
	return string(b)
}

func classifierSystemPrompt(batch BatchInput) string {
	return fmt.Sprintf(
		"Classify each message into mustDo topics %v or mustKnow topics %v. "+
			"mustDoOther=%v mustKnowOther=%v. Respond with JSON: "+
			`{"mustDo":[...],"mustKnow":[...]}`,
		batch.MustDoTopics, batch.MustKnowTopics, batch.MustDoOther, batch.MustKnowOther,
	)
}
