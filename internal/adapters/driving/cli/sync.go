package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/sentry-tap/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sentry-tap/internal/adapters/driven/emit/singer"
	statefile "github.com/custodia-labs/sentry-tap/internal/adapters/driven/state/file"
	statememory "github.com/custodia-labs/sentry-tap/internal/adapters/driven/state/memory"
	statesqlite "github.com/custodia-labs/sentry-tap/internal/adapters/driven/state/sqlite"
	"github.com/custodia-labs/sentry-tap/internal/connectors/sentry"
	"github.com/custodia-labs/sentry-tap/internal/core/domain"
	"github.com/custodia-labs/sentry-tap/internal/core/ports/driven"
	"github.com/custodia-labs/sentry-tap/internal/core/services"
	"github.com/custodia-labs/sentry-tap/internal/logger"
)

var streamsFlag []string

// newTracker builds the API client. Swappable for tests.
var newTracker = func(cfg sentry.Config) (driven.TrackerAPI, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return sentry.NewClient(&cfg), nil
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronise records from Sentry to stdout",
	Long: `Runs one extraction pass over the selected streams and writes the
results to stdout. State is persisted after every bookmark advancement,
so a failed run resumes from the last emitted state.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringSliceVar(&streamsFlag, "streams", nil,
		"streams to sync, in order (default: all)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := configfile.Load(configPath)
	if err != nil {
		return err
	}

	streams, err := selectStreams(cfg)
	if err != nil {
		return err
	}

	store, closeStore, err := openStateStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	initial, err := store.Load(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("loading state: %w", err)
		}
		initial = domain.NewState()
		logger.Debug("no previous state, starting from scratch")
	}

	api, err := newTracker(cfg.ClientConfig())
	if err != nil {
		return err
	}

	emitter := &persistingEmitter{
		next:  singer.NewEmitter(cmd.OutOrStdout()),
		store: store,
		ctx:   ctx,
	}

	engine, err := services.NewSyncEngine(ctx, api, emitter, initial)
	if err != nil {
		return fmt.Errorf("starting sync: %w", err)
	}
	defer engine.Close()

	if err := engine.SyncAll(ctx, streams); err != nil {
		return err
	}

	logger.Info("sync complete")
	return nil
}

// selectStreams resolves the flag over the config file.
func selectStreams(cfg *configfile.Config) ([]domain.Stream, error) {
	if len(streamsFlag) > 0 {
		streams := make([]domain.Stream, 0, len(streamsFlag))
		for _, name := range streamsFlag {
			s, err := domain.ParseStream(name)
			if err != nil {
				return nil, fmt.Errorf("stream %q: %w", name, err)
			}
			streams = append(streams, s)
		}
		return streams, nil
	}
	return cfg.SelectedStreams()
}

// openStateStore builds the configured state backend. The --state flag
// overrides the configured path but not the backend.
func openStateStore(cfg *configfile.Config) (driven.StateStore, func(), error) {
	path := cfg.State.Path
	if statePath != "" {
		path = statePath
	}

	switch cfg.State.Backend {
	case configfile.StateBackendMemory:
		return statememory.NewStateStore(), func() {}, nil
	case configfile.StateBackendSQLite:
		store, err := statesqlite.NewStateStore(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening state store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		store, err := statefile.NewStateStore(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening state store: %w", err)
		}
		return store, func() {}, nil
	}
}

// persistingEmitter forwards messages to the output emitter and
// persists every state snapshot it passes through. Persistence happens
// after the snapshot is on the wire, matching what a downstream loader
// has seen.
type persistingEmitter struct {
	next  driven.RecordEmitter
	store driven.StateStore
	ctx   context.Context
}

func (p *persistingEmitter) WriteSchema(stream domain.Stream) error {
	return p.next.WriteSchema(stream)
}

func (p *persistingEmitter) WriteRecord(stream domain.Stream, record domain.Record) error {
	return p.next.WriteRecord(stream, record)
}

func (p *persistingEmitter) WriteState(state domain.State) error {
	if err := p.next.WriteState(state); err != nil {
		return err
	}
	if err := p.store.Save(p.ctx, state); err != nil {
		return fmt.Errorf("persisting state: %w", err)
	}
	return nil
}
