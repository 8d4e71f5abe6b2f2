package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rzbill/scribe/internal/backend"
	pebbleback "github.com/rzbill/scribe/internal/backend/pebble"
	sqliteback "github.com/rzbill/scribe/internal/backend/sqlite"
	cfgpkg "github.com/rzbill/scribe/internal/config"
	"github.com/rzbill/scribe/internal/journal"
	"github.com/rzbill/scribe/internal/notify"
	pebblestore "github.com/rzbill/scribe/internal/storage/pebble"
	logpkg "github.com/rzbill/scribe/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
}

// Runtime wires the configured backend, the notification sinks, and the
// journal front end for a single-node instance.
type Runtime struct {
	config cfgpkg.Config
	logger logpkg.Logger

	// exactly one backend is open, per config
	db *pebblestore.DB
	pb *pebbleback.Store
	sq *sqliteback.Store

	broadcaster *notify.Broadcaster
	kafka       *notify.KafkaPublisher
	publisher   notify.Publisher
}

// Open initializes the configured backend and notification sinks.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("runtime"))
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	rt := &Runtime{config: cfg, logger: logger}
	switch cfg.Backend {
	case "sqlite":
		sq, err := sqliteback.Open(filepath.Join(cfg.DataDir, "journal.db"))
		if err != nil {
			return nil, err
		}
		rt.sq = sq
	default:
		db, err := pebblestore.Open(pebblestore.Options{
			DataDir:       filepath.Join(cfg.DataDir, "pebble"),
			Fsync:         fsyncMode(cfg.Fsync),
			FsyncInterval: time.Duration(cfg.FsyncIntervalMs) * time.Millisecond,
		})
		if err != nil {
			return nil, err
		}
		rt.db = db
		rt.pb = pebbleback.Open(db)
	}

	rt.broadcaster = notify.NewBroadcaster(cfg.QueueLen)
	if len(cfg.Kafka.Brokers) > 0 {
		rt.kafka = notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic,
			logger.With(logpkg.Component("notify.kafka")))
		rt.publisher = notify.Combine(rt.broadcaster, rt.kafka)
	} else {
		rt.publisher = rt.broadcaster
	}
	return rt, nil
}

// OpenJournal opens a journal front end over the runtime's backend. The
// caller owns the returned journal and must Close it before Runtime.Close.
func (r *Runtime) OpenJournal() (*journal.Journal, error) {
	return journal.Open(journal.Options{
		Store:           r.Store(),
		Replayer:        r.Replayer(),
		Publisher:       r.publisher,
		PublishCommands: r.config.PublishCommands,
		Logger:          r.logger.With(logpkg.Component("journal")),
		QueueLen:        r.config.QueueLen,
	})
}

// Store returns the configured write-side backend.
func (r *Runtime) Store() backend.Store {
	if r.sq != nil {
		return r.sq
	}
	return r.pb
}

// Replayer returns the configured read-side backend.
func (r *Runtime) Replayer() backend.Replayer {
	if r.sq != nil {
		return r.sq
	}
	return r.pb
}

// Scanner returns the pebble store's inspection surface when the pebble
// backend is configured. Ops tooling uses it for filtered scans and stats.
func (r *Runtime) Scanner() (*pebbleback.Store, bool) {
	return r.pb, r.pb != nil
}

// Subscribe registers an in-process subscriber for published command
// events. The cancel func removes the subscription.
func (r *Runtime) Subscribe() (<-chan notify.Event, func()) {
	return r.broadcaster.Subscribe()
}

// CheckHealth verifies the backend answers reads.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.sq != nil {
		_, err := r.sq.ReplayStream(ctx, "health", 1, 1, func(backend.Record) {})
		return err
	}
	if r.db == nil {
		return errors.New("runtime: no backend open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Close releases the notification sinks and the backend.
func (r *Runtime) Close() error {
	var first error
	if r.kafka != nil {
		if err := r.kafka.Close(); err != nil && first == nil {
			first = err
		}
	}
	if r.sq != nil {
		if err := r.sq.Close(); err != nil && first == nil {
			first = err
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func fsyncMode(mode string) pebblestore.FsyncMode {
	switch mode {
	case "always":
		return pebblestore.FsyncModeAlways
	case "never":
		return pebblestore.FsyncModeNever
	default:
		return pebblestore.FsyncModeInterval
	}
}
