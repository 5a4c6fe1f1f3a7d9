package cli

import (
	"encoding/json"
	"fmt"

	"github.com/inboxtriage/engine/config"
	"github.com/inboxtriage/engine/digest"
	"github.com/inboxtriage/engine/engine"
	"github.com/inboxtriage/engine/llmclient"
	"github.com/inboxtriage/engine/logger"
	"github.com/inboxtriage/engine/mailer"
	"github.com/inboxtriage/engine/mailstore"
	"github.com/inboxtriage/engine/metricshttp"
)

// Run is the CLI entry point's orchestration function: load config, wire
// every capability, and dispatch to the requested command (teacher's
// cli.Run shape, generalized from a bulk-send pipeline to the engine's
// tick/start/status/serve commands).
func Run(args CLIArgs) error {
	cfg, err := config.LoadConfig(args.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	eng, db, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	port := cfg.Metrics.Port
	if args.MetricsPort != 0 {
		port = args.MetricsPort
	}
	if cfg.Metrics.Enabled {
		srv := metricshttp.NewServer(port, nil)
		go func() { _ = srv.Start() }()
	}

	switch args.Command {
	case "tick":
		return eng.HandleTick()
	case "start":
		tr, err := engine.ResolveTimeRange(args.TimeRange, eng.NowForCLI())
		if err != nil {
			return err
		}
		return eng.Start(tr)
	case "status":
		return printStatus(eng)
	case "serve":
		return serveForever(eng)
	default:
		return fmt.Errorf("unknown command %q", args.Command)
	}
}

func printStatus(eng *engine.Engine) error {
	stats, ok, err := eng.LatestRunStats()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("no active run has ever completed")
		return nil
	}
	b, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func buildEngine(cfg *config.AppConfig) (*engine.Engine, dbCloser, error) {
	db, kv, blobs, err := openStores(cfg.Store.DBPath)
	if err != nil {
		return nil, nil, err
	}

	llmClient := llmclient.NewHTTPClient(cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout)
	mail := mailstore.NewMemory(nil) // real mail-provider glue is not wired up here
	triggers := newTriggerService()
	mailerImpl := mailer.New(cfg.ToMailerConfig())
	digestRenderer := digest.New("")

	eng := engine.New(kv, blobs, mail, llmClient, triggers, mailerImpl, digestRenderer, cfg.ToEngineConfig())
	eng.Log = logger.New("inboxtriage")
	return eng, db, nil
}
