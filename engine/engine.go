// Package engine is the persistent state machine: the Dispatcher, the
// Chunked Active Engine, the Passive Engine, and the Batcher/Classifier
// that the rest of this repo exists to drive. Every public entry point
// reloads its state from KVStore/BlobStore first; no in-process field
// here is authoritative across a wake-up.
package engine

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/inboxtriage/engine/blobstore"
	"github.com/inboxtriage/engine/domain"
	"github.com/inboxtriage/engine/kvstore"
	"github.com/inboxtriage/engine/llmclient"
	"github.com/inboxtriage/engine/mailstore"
	"github.com/inboxtriage/engine/trigger"
)

// Mailer is the capability the engine sends completion/error/timeout
// notifications and the daily digest through. Defined here, next to its
// only consumer, so mailer.SMTP can implement it without the engine
// importing mailer.
type Mailer interface {
	Send(to, subject, htmlBody, senderName string) error
}

// DigestRenderer renders the accumulator into the HTML body sent as the
// daily digest and as the active-run completion email. HTML design is out
// of scope; rendering as a pure function is all this interface owns.
type DigestRenderer interface {
	Render(acc domain.AccumulatorFile) (string, error)
}

// Clock abstracts time so tests can control `now()`.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config is the subset of config.AppConfig the engine needs at runtime.
type Config struct {
	LLM       LLMConfig
	Topics    TopicsConfig
	Policy    PolicyConfig
	TimeZone  string
	AddonName string
	// NotifyAddress is where completion/error/timeout emails and the
	// daily digest are sent: the user's own address.
	NotifyAddress string
	SenderName    string
	// DispatcherInterval is the host-imposed recurring cadence; treated
	// as a lower bound, never assumed finer than 1h.
	DispatcherInterval time.Duration
}

// LLMConfig, TopicsConfig, PolicyConfig mirror config.LLMConfig /
// config.TopicsConfig / config.PolicyConfig; duplicated here as plain
// value types so engine has no import-time dependency on the config
// package's JSON/file-loading concerns (the two are kept in sync by
// config.AppConfig.ToEngineConfig, see config/config.go).
type LLMConfig struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}

type TopicsConfig struct {
	MustDoTopics   []string
	MustKnowTopics []string
	MustDoOther    bool
	MustKnowOther  bool
}

type PolicyConfig struct {
	UnreadOnly                   bool
	InboxOnly                    bool
	MustDoLabel                  string
	MustKnowLabel                string
	MarkProcessedAsRead          bool
	RemoveUninterestingFromInbox bool
}

func (c Config) configurationError() error {
	if c.LLM.APIKey == "" {
		return newError(ErrConfiguration, "llm api key is not configured", nil)
	}
	return nil
}

// Engine bundles every injected capability the core consumes; each is
// defined as an interface so it can be swapped out in tests.
type Engine struct {
	KV       kvstore.Store
	Blobs    blobstore.Store
	Mail     mailstore.Store
	LLM      llmclient.Client
	Triggers trigger.Service
	Mailer   Mailer
	Digest   DigestRenderer
	Clock    Clock
	Config   Config
	Log      Logger

	// TokenLimiter is the Batcher's MAX_TOKENS/TOKENS_PER_CHAR cost guard,
	// a real token bucket sized in estimated LLM-tokens-per-minute.
	TokenLimiter *rate.Limiter
	// SearchLimiter bounds MailStore.Search call frequency, without
	// changing the chunking semantics that already bound call frequency
	// on their own.
	SearchLimiter *rate.Limiter
}

// New builds an Engine, filling in a system clock, a no-op logger, and
// default rate limiters when not provided so zero-value-friendly
// construction works in tests.
func New(kv kvstore.Store, blobs blobstore.Store, mail mailstore.Store, llm llmclient.Client, triggers trigger.Service, mailer Mailer, digest DigestRenderer, cfg Config) *Engine {
	return &Engine{
		KV: kv, Blobs: blobs, Mail: mail, LLM: llm, Triggers: triggers,
		Mailer: mailer, Digest: digest, Clock: systemClock{}, Config: cfg,
		Log:           nopLogger{},
		TokenLimiter:  rate.NewLimiter(rate.Limit(MaxTokens/60), MaxTokens),
		SearchLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (e *Engine) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock.Now()
}

func (e *Engine) log() Logger {
	if e.Log == nil {
		return nopLogger{}
	}
	return e.Log
}

// NowForCLI exposes the engine's clock to CLI callers that need to resolve
// a symbolic time range before calling Start.
func (e *Engine) NowForCLI() time.Time { return e.now() }

// LatestRunStats exposes the UI-facing snapshot of the most recently
// terminated active run.
func (e *Engine) LatestRunStats() (domain.RunStats, bool, error) {
	return ReadLatestRunStats(e.KV)
}

func (e *Engine) notify(subject, body string) {
	if e.Mailer == nil || e.Config.NotifyAddress == "" {
		return
	}
	if err := e.Mailer.Send(e.Config.NotifyAddress, subject, body, e.Config.SenderName); err != nil {
		e.log().Errorf("notify %q failed: %v", subject, err)
	}
}
