package datasource

// LoadOptions represents options for loading documents
type LoadOptions struct {
	// Recursive indicates whether to recursively load from directories/prefixes
	Recursive bool
	// Filter is a function that determines whether to load a document
	Filter func(metadata map[string]interface{}) bool
	// MaxItems is the maximum number of items to load (0 for no limit)
	MaxItems int
}

// Option is a function type to modify LoadOptions
type Option func(*LoadOptions)

// NewLoadOptions applies opts over the zero configuration
func NewLoadOptions(opts ...Option) *LoadOptions {
	o := &LoadOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Accept reports whether metadata passes the configured filter
func (o *LoadOptions) Accept(metadata map[string]interface{}) bool {
	return o.Filter == nil || o.Filter(metadata)
}

// Full reports whether n loaded items reach MaxItems
func (o *LoadOptions) Full(n int) bool {
	return o.MaxItems > 0 && n >= o.MaxItems
}

// WithRecursive sets whether to load recursively
func WithRecursive(recursive bool) Option {
	return func(o *LoadOptions) {
		o.Recursive = recursive
	}
}

// WithFilter sets a filter function for documents
func WithFilter(filter func(metadata map[string]interface{}) bool) Option {
	return func(o *LoadOptions) {
		o.Filter = filter
	}
}

// WithMaxItems sets the maximum number of items to load
func WithMaxItems(max int) Option {
	return func(o *LoadOptions) {
		o.MaxItems = max
	}
}
