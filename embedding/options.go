package embedding

import "golang.org/x/time/rate"

// Options configures an Embedder
type Options struct {
	Model     string
	BatchSize int // texts per request

	// Normalize scales query vectors to unit length so cosine and inner product rank alike
	Normalize bool

	// RequestsPerSecond caps embedding API calls; zero disables throttling
	RequestsPerSecond float64
}

type Option func(*Options)

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithBatchSize splits EmbedDocuments input into requests of at most size texts
func WithBatchSize(size int) Option {
	return func(o *Options) {
		o.BatchSize = size
	}
}

func WithNormalization(normalize bool) Option {
	return func(o *Options) {
		o.Normalize = normalize
	}
}

// WithRequestsPerSecond throttles embedding requests
func WithRequestsPerSecond(rps float64) Option {
	return func(o *Options) {
		o.RequestsPerSecond = rps
	}
}

// Apply returns base with opts applied
func Apply(base Options, opts ...Option) Options {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

// Limiter returns a limiter for RequestsPerSecond, or nil when throttling is off
func (o Options) Limiter() *rate.Limiter {
	if o.RequestsPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(o.RequestsPerSecond), 1)
}
