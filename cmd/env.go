package main

import (
	"context"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-cli/internal/audit"
	"github.com/sells-group/audit-cli/internal/capture"
	"github.com/sells-group/audit-cli/internal/crm"
	"github.com/sells-group/audit-cli/internal/lockreg"
	"github.com/sells-group/audit-cli/internal/model"
	"github.com/sells-group/audit-cli/internal/report"
	"github.com/sells-group/audit-cli/internal/store"
	"github.com/sells-group/audit-cli/internal/vision"
)

// env bundles the wired collaborators shared by the commands.
type env struct {
	store   store.Store
	locks   *lockreg.Registry
	auditor *audit.Auditor
	reports *report.Builder
}

func (e *env) Close() {
	_ = e.store.Close()
}

// initEnv wires the store, lock registry, capturer and scorers from config.
// The vision scorer is only attached when an Anthropic key is configured.
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}

	capturer := capture.New(
		time.Duration(cfg.Capture.TimeoutSecs)*time.Second,
		cfg.Capture.RequestsPerSecond,
	)

	locks := lockreg.NewRegistry()
	auditor := audit.New(st, locks, capturer)
	if cfg.Anthropic.Key != "" {
		auditor = auditor.WithVision(vision.New(cfg.Anthropic.Key, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens))
	}

	return &env{
		store:   st,
		locks:   locks,
		auditor: auditor,
		reports: report.NewBuilder(st),
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initPusher() (*crm.Pusher, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (AUDIT_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return crm.NewPusher(sf, 5), nil
}

func parseGeneration(s string) (model.Generation, error) {
	switch s {
	case "legacy":
		return model.GenerationLegacy, nil
	case "", "current":
		return model.GenerationCurrent, nil
	default:
		return "", eris.Errorf("unknown generation %q (want legacy or current)", s)
	}
}
