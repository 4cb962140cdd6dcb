package mountainrange

import (
	"github.com/forestrie/go-mountainrange/checkpoint"
	"github.com/forestrie/go-mountainrange/snowflakeid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultJournalLimit = 4096
	defaultQueueDepth   = 64
)

type StoreOptions struct {
	// LogID identifies the range in checkpoints and metrics. A random id is
	// used if it is not set.
	LogID uuid.UUID

	// Publisher, if set, is given the new state after every append and clear.
	Publisher checkpoint.Publisher

	// Registerer, if set, receives the store metrics.
	Registerer prometheus.Registerer

	IDConfig snowflakeid.Config

	// JournalLimit is the number of journal entries retained.
	JournalLimit int

	// QueueDepth is how many writes may wait for the writer.
	QueueDepth int
}

// Option follows the same convention as the nodestore options.
type Option func(any)

func WithLogID(id uuid.UUID) Option {
	return func(opts any) {
		if o, ok := opts.(*StoreOptions); ok {
			o.LogID = id
		}
	}
}

func WithPublisher(p checkpoint.Publisher) Option {
	return func(opts any) {
		if o, ok := opts.(*StoreOptions); ok {
			o.Publisher = p
		}
	}
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(opts any) {
		if o, ok := opts.(*StoreOptions); ok {
			o.Registerer = reg
		}
	}
}

// WithIDConfig configures the generator for journal ids. The commitment
// epoch is also carried in published checkpoints.
func WithIDConfig(cfg snowflakeid.Config) Option {
	return func(opts any) {
		if o, ok := opts.(*StoreOptions); ok {
			o.IDConfig = cfg
		}
	}
}

func WithJournalLimit(limit int) Option {
	return func(opts any) {
		if o, ok := opts.(*StoreOptions); ok {
			o.JournalLimit = limit
		}
	}
}

func WithQueueDepth(depth int) Option {
	return func(opts any) {
		if o, ok := opts.(*StoreOptions); ok {
			o.QueueDepth = depth
		}
	}
}

func newStoreOptions(opts []Option) StoreOptions {
	o := StoreOptions{
		IDConfig: snowflakeid.Config{
			CommitmentEpoch: 1,
			AllowSpins:      snowflakeid.MaxSpins,
		},
		JournalLimit: defaultJournalLimit,
		QueueDepth:   defaultQueueDepth,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.LogID == uuid.Nil {
		o.LogID = uuid.New()
	}
	return o
}
