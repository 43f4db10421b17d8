package repository

// ReadOptions tune range reads.
type ReadOptions struct {
	Limit    int
	HasLimit bool
}

type ReadOption func(*ReadOptions)

// WithLimit caps a range read to the first n rows. n <= 0 yields no rows.
func WithLimit(n int) ReadOption {
	return func(o *ReadOptions) {
		o.Limit = n
		o.HasLimit = true
	}
}

// NewReadOptions applies opts over the defaults.
func NewReadOptions(opts ...ReadOption) ReadOptions {
	var o ReadOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WriteOptions tune mutations.
type WriteOptions struct {
	Commit bool
}

type WriteOption func(*WriteOptions)

// NoCommit leaves the mutation in the pending transaction until the store is
// committed explicitly. A later CompareAndWrite on the same store commits
// pending writes too.
func NoCommit() WriteOption {
	return func(o *WriteOptions) { o.Commit = false }
}

// NewWriteOptions applies opts over the defaults. Mutations commit by default.
func NewWriteOptions(opts ...WriteOption) WriteOptions {
	o := WriteOptions{Commit: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
