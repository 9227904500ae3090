package kb

import (
	"github.com/Abraxas-365/coursekb/llm"
	"github.com/Abraxas-365/coursekb/logger"
	"github.com/Abraxas-365/coursekb/vectorstore"
)

// Options contains configuration for the knowledge base
type Options struct {
	ScoreThreshold float32
	Filters        vectorstore.Filter
	Dimensions     int
	TopK           int
	LLM            llm.LLM // Optional LLM
	Temperature    float32
	MaxTokens      int
	PromptTemplate string
	StoreName      string
	Logger         logger.Logger
}

// Option is a function type to modify Options
type Option func(*Options)

// Default options
func defaultOptions() *Options {
	return &Options{
		ScoreThreshold: 0.0,
		TopK:           3,
		Temperature:    0,
		PromptTemplate: DefaultPromptTemplate,
		StoreName:      "vectorstore",
		Logger:         logger.Default(),
	}
}

// WithScoreThreshold sets the minimum similarity score threshold
func WithScoreThreshold(threshold float32) Option {
	return func(o *Options) {
		o.ScoreThreshold = threshold
	}
}

// WithFilters sets default filters for queries
func WithFilters(filters vectorstore.Filter) Option {
	return func(o *Options) {
		o.Filters = filters
	}
}

// WithDimensions sets the vector dimensions checked on indexing
func WithDimensions(dimensions int) Option {
	return func(o *Options) {
		o.Dimensions = dimensions
	}
}

// WithTopK sets the number of similar documents to retrieve
func WithTopK(k int) Option {
	return func(o *Options) {
		o.TopK = k
	}
}

// WithLLM sets the LLM for the knowledge base
func WithLLM(model llm.LLM) Option {
	return func(o *Options) {
		o.LLM = model
	}
}

// WithTemperature sets the sampling temperature used for answers
func WithTemperature(t float32) Option {
	return func(o *Options) {
		o.Temperature = t
	}
}

// WithMaxTokens caps answer length; 0 leaves it to the model
func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// WithPromptTemplate replaces the answer prompt; it must contain {context} and {question}
func WithPromptTemplate(template string) Option {
	return func(o *Options) {
		o.PromptTemplate = template
	}
}

// WithStoreName labels vector store errors
func WithStoreName(name string) Option {
	return func(o *Options) {
		o.StoreName = name
	}
}

func WithLogger(l logger.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// AskOptions tune a single question
type AskOptions struct {
	TopK    int
	Filter  vectorstore.Filter
	History []llm.Message
}

type AskOption func(*AskOptions)

// WithK overrides the number of retrieved chunks for one question
func WithK(k int) AskOption {
	return func(o *AskOptions) {
		o.TopK = k
	}
}

// WithFilter restricts retrieval for one question
func WithFilter(filter vectorstore.Filter) AskOption {
	return func(o *AskOptions) {
		o.Filter = filter
	}
}

// WithHistory sends earlier turns ahead of the prompt
func WithHistory(msgs []llm.Message) AskOption {
	return func(o *AskOptions) {
		o.History = msgs
	}
}
