package nodestore

type StoreOptions struct {
	// Width, when non zero, is enforced for every appended value
	Width int
	// InMemory keeps the key value backends off disk
	InMemory bool
	// SyncWrites makes every append durable before it returns
	SyncWrites bool
}

// Option is a generic option type used for store implementations.
// Implementations type assert to their options target and if that fails they
// ignore the option.
type Option func(any)

func WithWidth(width int) Option {
	return func(opts any) {
		if o, ok := opts.(*StoreOptions); ok {
			o.Width = width
		}
	}
}

func WithInMemory() Option {
	return func(opts any) {
		if o, ok := opts.(*StoreOptions); ok {
			o.InMemory = true
		}
	}
}

func WithSyncWrites(sync bool) Option {
	return func(opts any) {
		if o, ok := opts.(*StoreOptions); ok {
			o.SyncWrites = sync
		}
	}
}

func newStoreOptions(opts []Option) StoreOptions {
	o := StoreOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o StoreOptions) checkWidth(value []byte) error {
	if o.Width != 0 && len(value) != o.Width {
		return ErrValueWidth
	}
	return nil
}
