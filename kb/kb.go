package kb

import (
	"context"
	"strings"

	"github.com/Abraxas-365/coursekb/datasource"
	"github.com/Abraxas-365/coursekb/document"
	"github.com/Abraxas-365/coursekb/embedding"
	"github.com/Abraxas-365/coursekb/llm"
	"github.com/Abraxas-365/coursekb/vectorstore"
)

// KnowledgeBase indexes course material and answers questions over it
type KnowledgeBase struct {
	embedder embedding.Embedder
	vStore   *vectorstore.VectorStore
	store    vectorstore.Store
	splitter document.Splitter
	opts     *Options
}

// Answer is the result of a question
type Answer struct {
	Question string                 `json:"question"`
	Answer   string                 `json:"answer"`
	Context  []vectorstore.Document `json:"context"`
	Sources  []Source               `json:"sources"`
	Usage    *llm.Usage             `json:"usage,omitempty"`
}

// StreamAnswer carries the retrieval result and the answer tokens as they arrive
type StreamAnswer struct {
	Question string
	Context  []vectorstore.Document
	Sources  []Source
	Tokens   <-chan llm.StreamResponse
}

// IndexResult counts what an indexing run stored
type IndexResult struct {
	Sources   []string
	Documents int
	Chunks    int
}

// New creates a new KnowledgeBase instance with the provided options
func New(
	embedder embedding.Embedder,
	store vectorstore.Store,
	splitter document.Splitter,
	opts ...Option,
) (*KnowledgeBase, error) {
	if embedder == nil || store == nil || splitter == nil {
		return nil, errorf("New", "embedder, store and splitter are required")
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	kb := &KnowledgeBase{
		embedder: embedder,
		store:    store,
		splitter: splitter,
		opts:     options,
	}
	kb.vStore = kb.newVectorStore()

	return kb, nil
}

func (kb *KnowledgeBase) newVectorStore() *vectorstore.VectorStore {
	return vectorstore.New(
		kb.store,
		kb.embedder,
		vectorstore.WithScoreThreshold(kb.opts.ScoreThreshold),
		vectorstore.WithFilters(kb.opts.Filters),
		vectorstore.WithTopK(kb.opts.TopK),
		vectorstore.WithDimensions(kb.opts.Dimensions),
		vectorstore.WithStoreName(kb.opts.StoreName),
	)
}

// HasLLM returns whether the knowledge base has an LLM configured
func (kb *KnowledgeBase) HasLLM() bool {
	return kb.opts.LLM != nil
}

func (kb *KnowledgeBase) InitStore(ctx context.Context, forceRecreate bool) error {
	return kb.vStore.InitDB(ctx, forceRecreate)
}

// Sync loads every document of ds and indexes it
func (kb *KnowledgeBase) Sync(ctx context.Context, ds datasource.DataSource, opts ...datasource.Option) (*IndexResult, error) {
	loaded, err := ds.Load(ctx, opts...)
	if err != nil {
		return nil, newError("Sync", "", "failed to load data source", err)
	}

	docs := make([]document.Document, len(loaded))
	for i, d := range loaded {
		docs[i] = d.ToDocument()
	}

	return kb.Index(ctx, docs)
}

// Index splits and stores docs; chunks previously stored for each source are replaced
func (kb *KnowledgeBase) Index(ctx context.Context, docs []document.Document) (*IndexResult, error) {
	result := &IndexResult{}

	var order []string
	groups := make(map[string][]document.Document)
	for _, d := range docs {
		if strings.TrimSpace(d.PageContent) == "" {
			continue
		}
		src, _ := d.MetaString(document.MetaSource)
		if _, seen := groups[src]; !seen {
			order = append(order, src)
		}
		groups[src] = append(groups[src], d)
	}

	for _, src := range order {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		chunks, err := document.SplitDocuments(kb.splitter, groups[src])
		if err != nil {
			return result, newError("Index", src, "failed to split documents", err)
		}

		if src != "" {
			if err := kb.vStore.Delete(ctx, vectorstore.Filter{document.MetaSource: src}); err != nil {
				return result, newError("Index", src, "failed to remove previous chunks", err)
			}
		}

		if _, err := kb.vStore.AddDocuments(ctx, chunks); err != nil {
			return result, newError("Index", src, "failed to add chunks", err)
		}

		kb.opts.Logger.Info("indexed %d chunks from %d pages of %s", len(chunks), len(groups[src]), src)
		result.Sources = append(result.Sources, src)
		result.Documents += len(groups[src])
		result.Chunks += len(chunks)
	}

	return result, nil
}

// RemoveSource drops the chunks matching filter
func (kb *KnowledgeBase) RemoveSource(ctx context.Context, filter vectorstore.Filter) error {
	if len(filter) == 0 {
		return ErrEmptyFilter
	}
	if err := kb.vStore.Delete(ctx, filter); err != nil {
		return newError("RemoveSource", "", "failed to delete chunks", err)
	}
	return nil
}

func (kb *KnowledgeBase) SimilaritySearch(
	ctx context.Context,
	query string,
	limit int,
	filter vectorstore.Filter,
) ([]vectorstore.Document, error) {
	return kb.vStore.SimilaritySearch(ctx, query, limit, filter)
}

// prepare validates the question, retrieves context and builds the messages for the model
func (kb *KnowledgeBase) prepare(ctx context.Context, op, question string, opts []AskOption) ([]vectorstore.Document, []llm.Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil, ErrEmptyQuestion
	}
	if kb.opts.LLM == nil {
		return nil, nil, ErrNoLLM
	}

	ask := &AskOptions{TopK: kb.opts.TopK}
	for _, opt := range opts {
		opt(ask)
	}

	docs, err := kb.vStore.SimilaritySearch(ctx, question, ask.TopK, ask.Filter)
	if err != nil {
		return nil, nil, newError(op, "", "failed to retrieve context", err)
	}
	kb.opts.Logger.Debug("retrieved %d chunks for %q", len(docs), question)

	prompt := BuildPrompt(kb.opts.PromptTemplate, FormatDocs(docs), question)
	return docs, llm.WithPrompt(ask.History, prompt), nil
}

func (kb *KnowledgeBase) chatOptions() []llm.Option {
	opts := []llm.Option{llm.WithTemperature(kb.opts.Temperature)}
	if kb.opts.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(kb.opts.MaxTokens))
	}
	return opts
}

// Ask answers question from the retrieved chunks only
func (kb *KnowledgeBase) Ask(ctx context.Context, question string, opts ...AskOption) (*Answer, error) {
	docs, messages, err := kb.prepare(ctx, "Ask", question, opts)
	if err != nil {
		return nil, err
	}

	reply, err := kb.opts.LLM.Chat(ctx, messages, kb.chatOptions()...)
	if err != nil {
		return nil, newError("Ask", "", "failed to generate answer", err)
	}

	return &Answer{
		Question: strings.TrimSpace(question),
		Answer:   reply.Content,
		Context:  docs,
		Sources:  Sources(docs),
		Usage:    reply.GetUsage(),
	}, nil
}

// AskStream is Ask with the answer delivered token by token
func (kb *KnowledgeBase) AskStream(ctx context.Context, question string, opts ...AskOption) (*StreamAnswer, error) {
	docs, messages, err := kb.prepare(ctx, "AskStream", question, opts)
	if err != nil {
		return nil, err
	}

	tokens, err := kb.opts.LLM.ChatStream(ctx, messages, kb.chatOptions()...)
	if err != nil {
		return nil, newError("AskStream", "", "failed to start answer stream", err)
	}

	return &StreamAnswer{
		Question: strings.TrimSpace(question),
		Context:  docs,
		Sources:  Sources(docs),
		Tokens:   tokens,
	}, nil
}

// Collect drains a stream into the full answer text
func (s *StreamAnswer) Collect() (string, error) {
	text, _, err := llm.Drain(s.Tokens, nil)
	return text, err
}
