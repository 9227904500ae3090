package vectorstore

// Options contains configuration for the vector store
type Options struct {
	ScoreThreshold float32
	Filters        Filter
	Dimensions     int
	TopK           int
	StoreName      string
}

// Option is a function type to modify Options
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		TopK:      4,
		StoreName: "vectorstore",
	}
}

// WithScoreThreshold sets the minimum similarity score threshold
func WithScoreThreshold(threshold float32) Option {
	return func(o *Options) {
		o.ScoreThreshold = threshold
	}
}

// WithFilters sets default filters for queries
func WithFilters(filters Filter) Option {
	return func(o *Options) {
		o.Filters = filters
	}
}

// WithDimensions enforces the embedding width; zero skips the check
func WithDimensions(n int) Option {
	return func(o *Options) {
		o.Dimensions = n
	}
}

// WithTopK sets the result count used when a search passes no limit
func WithTopK(k int) Option {
	return func(o *Options) {
		o.TopK = k
	}
}

// WithStoreName labels errors raised by this store
func WithStoreName(name string) Option {
	return func(o *Options) {
		o.StoreName = name
	}
}
