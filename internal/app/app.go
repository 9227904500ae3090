// Package app assembles coursekb components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Abraxas-365/coursekb/adapters/aws/bedrock"
	"github.com/Abraxas-365/coursekb/adapters/aws/s3/s3source"
	"github.com/Abraxas-365/coursekb/adapters/aws/s3/s3storage"
	"github.com/Abraxas-365/coursekb/adapters/chromem"
	"github.com/Abraxas-365/coursekb/adapters/inmemory"
	"github.com/Abraxas-365/coursekb/adapters/local"
	"github.com/Abraxas-365/coursekb/adapters/openai"
	"github.com/Abraxas-365/coursekb/adapters/pdfloader"
	"github.com/Abraxas-365/coursekb/adapters/pgvector"
	"github.com/Abraxas-365/coursekb/adapters/postgres"
	"github.com/Abraxas-365/coursekb/adapters/redis"
	"github.com/Abraxas-365/coursekb/adapters/web/websource"
	"github.com/Abraxas-365/coursekb/batch"
	"github.com/Abraxas-365/coursekb/chathistory"
	"github.com/Abraxas-365/coursekb/config"
	"github.com/Abraxas-365/coursekb/datasource"
	"github.com/Abraxas-365/coursekb/docmanager"
	"github.com/Abraxas-365/coursekb/document"
	"github.com/Abraxas-365/coursekb/embedding"
	"github.com/Abraxas-365/coursekb/ingest"
	"github.com/Abraxas-365/coursekb/kb"
	"github.com/Abraxas-365/coursekb/llm"
	"github.com/Abraxas-365/coursekb/logger"
	"github.com/Abraxas-365/coursekb/server"
	"github.com/Abraxas-365/coursekb/storage"
	"github.com/Abraxas-365/coursekb/vectorstore"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	goopenai "github.com/sashabaranov/go-openai"
)

var ErrMissingAPIKey = errors.New("OpenAIAPIKey is not set in config.json or OPENAI_API_KEY")

type App struct {
	Config  *config.Config
	Log     logger.Logger
	KB      *kb.KnowledgeBase
	Docs    *docmanager.Manager
	Files   storage.DataStore
	Batches batch.Store
	History *chathistory.Memory
	Ingest  *ingest.Processor

	s3      *s3.Client
	closers []func() error
}

// Build wires every component described by cfg. Close releases the connections it opened.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, ErrMissingAPIKey
	}

	log := logger.New("[coursekb] ", os.Stderr, logger.ParseLevel(cfg.Log.Level))
	logger.SetDefault(log)

	a := &App{Config: cfg, Log: log}
	if err := a.build(ctx); err != nil {
		if cerr := a.Close(); cerr != nil {
			log.Warn("releasing partially built app: %v", cerr)
		}
		return nil, err
	}
	return a, nil
}

// build fills a in dependency order; closers registered before a failure stay on a
func (a *App) build(ctx context.Context) error {
	cfg, log := a.Config, a.Log
	oai := newOpenAIClient(cfg)

	model, err := a.newLLM(oai)
	if err != nil {
		return err
	}

	embedder := openai.NewOpenAIEmbedderWithClient(oai,
		embedding.WithModel(cfg.Embedding.Model),
		embedding.WithBatchSize(cfg.Embedding.BatchSize),
		embedding.WithRequestsPerSecond(cfg.Embedding.RequestsPerSecond),
	)

	splitter, err := newSplitter(cfg.Splitter)
	if err != nil {
		return fmt.Errorf("splitter: %w", err)
	}

	vectors, err := a.newVectorStore(ctx)
	if err != nil {
		return fmt.Errorf("vector store: %w", err)
	}

	kbOpts := []kb.Option{
		kb.WithTopK(cfg.Retriever.TopK),
		kb.WithScoreThreshold(cfg.Retriever.ScoreThreshold),
		kb.WithDimensions(cfg.Embedding.Dimensions),
		kb.WithTemperature(cfg.LLM.Temperature),
		kb.WithMaxTokens(cfg.LLM.MaxTokens),
		kb.WithStoreName(cfg.VectorStore.Type),
		kb.WithLLM(model),
		kb.WithLogger(log),
	}
	a.KB, err = kb.New(embedder, vectors, splitter, kbOpts...)
	if err != nil {
		return err
	}
	if err := a.KB.InitStore(ctx, false); err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}

	if a.Files, err = a.newFileStore(); err != nil {
		return fmt.Errorf("file storage: %w", err)
	}
	a.Docs = docmanager.New(a.Files,
		docmanager.WithUploadDir(cfg.Storage.Dir),
		docmanager.WithMetadataFile(cfg.Storage.MetadataFile),
		docmanager.WithMaxFileSize(cfg.Storage.MaxFileSize),
		docmanager.WithLogger(log),
	)

	if a.Batches, err = a.newBatchStore(ctx); err != nil {
		return fmt.Errorf("batch store: %w", err)
	}

	repo, err := a.newHistoryRepository(ctx)
	if err != nil {
		return fmt.Errorf("chat history: %w", err)
	}
	a.History = chathistory.New(repo,
		chathistory.WithReturnLimit(cfg.ChatHistory.ReturnLimit),
		chathistory.WithSystemPrompt(cfg.ChatHistory.SystemPrompt),
	)

	a.Ingest = ingest.NewProcessor(a.Docs, a.KB, a.Batches, ingest.WithLogger(log))
	return nil
}

// Close releases resources in reverse order of creation
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Server builds the HTTP API over the app's components
func (a *App) Server() *server.Server {
	return server.New(a.KB, a.Docs, a.Ingest, a.History,
		server.WithLogger(a.Log),
		server.WithCORSOrigins(a.Config.Server.CORSOrigins...),
		server.WithPresignExpiry(a.Config.Storage.S3.PresignExpiry),
	)
}

// Materials returns the configured course material sources
func (a *App) Materials() []datasource.DataSource {
	m := a.Config.Materials
	var sources []datasource.DataSource
	if m.Dir != "" {
		sources = append(sources, pdfloader.NewDirectoryLoader(m.Dir, m.Glob,
			pdfloader.WithSkipErrors(true), pdfloader.WithLogger(a.Log)))
	}
	if len(m.URLs) > 0 {
		sources = append(sources, websource.NewWebSource(m.URLs, 30*time.Second))
	}
	if m.S3Prefix != "" {
		sources = append(sources, s3source.NewS3Source(a.s3Client(), a.Config.Storage.S3.Bucket, m.S3Prefix))
	}
	return sources
}

// SyncMaterials indexes every configured material source
func (a *App) SyncMaterials(ctx context.Context) (*kb.IndexResult, error) {
	total := &kb.IndexResult{}
	for _, src := range a.Materials() {
		res, err := a.KB.Sync(ctx, src, datasource.WithRecursive(a.Config.Materials.Recursive))
		if res != nil {
			total.Sources = append(total.Sources, res.Sources...)
			total.Documents += res.Documents
			total.Chunks += res.Chunks
		}
		if datasource.IsCode(err, datasource.ErrCodeNotFound) {
			a.Log.Warn("skipping course materials: %v", err)
			continue
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func newOpenAIClient(cfg *config.Config) *goopenai.Client {
	oc := goopenai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.LLM.BaseURL != "" {
		oc.BaseURL = cfg.LLM.BaseURL
	}
	return goopenai.NewClientWithConfig(oc)
}

func (a *App) newLLM(oai *goopenai.Client) (llm.LLM, error) {
	c := a.Config.LLM
	switch c.Provider {
	case "openai":
		return openai.NewOpenAILLMWithClient(oai, c.Model), nil
	case "bedrock":
		client := bedrockruntime.New(bedrockruntime.Options{
			Region:      c.Region,
			Credentials: aws.NewCredentialsCache(envCredentials()),
		})
		return bedrock.NewBedrockLLM(client, bedrock.LLMModelID(c.Model)), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", c.Provider)
	}
}

// envCredentials reads the standard AWS_* variables
func envCredentials() aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		creds := aws.Credentials{
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}
		if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
			return aws.Credentials{}, errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
		}
		return creds, nil
	})
}

func newSplitter(c config.SplitterConfig) (document.Splitter, error) {
	switch c.Type {
	case "recursive":
		return document.NewRecursiveSplitter(c.ChunkSize, c.ChunkOverlap, c.Model)
	case "token":
		return document.NewTiktokenSplitter(c.ChunkSize, c.ChunkOverlap, c.Model)
	case "character":
		return document.NewCharacterSplitter(c.ChunkSize, c.ChunkOverlap, "\n\n")
	default:
		return nil, fmt.Errorf("unknown splitter %q", c.Type)
	}
}

func (a *App) newVectorStore(ctx context.Context) (vectorstore.Store, error) {
	c := a.Config.VectorStore
	switch c.Type {
	case "chromem":
		return chromem.NewChromemStore(chromem.Options{
			Collection: c.Collection,
			Path:       c.Path,
			Compress:   c.Compress,
		})
	case "pgvector":
		store, err := pgvector.NewPGVectorStore(ctx, c.DSN, pgvector.Options{
			TableName: c.Table,
			Dimension: a.Config.Embedding.Dimensions,
			Distance:  pgvector.Distance(c.Distance),
		})
		if err != nil {
			return nil, err
		}
		a.onClose(func() error { store.Close(); return nil })
		return store, nil
	default:
		return nil, fmt.Errorf("unknown vector store %q", c.Type)
	}
}

func (a *App) s3Client() *s3.Client {
	if a.s3 == nil {
		c := a.Config.Storage.S3
		a.s3 = s3storage.NewClient(s3storage.ClientConfig{
			Region:          c.Region,
			Endpoint:        c.Endpoint,
			AccessKeyID:     c.AccessKeyID,
			SecretAccessKey: c.SecretAccessKey,
			UsePathStyle:    c.UsePathStyle,
		})
	}
	return a.s3
}

func (a *App) newFileStore() (storage.DataStore, error) {
	c := a.Config.Storage
	switch c.Type {
	case "local":
		return local.NewStore(c.Dir)
	case "s3":
		return s3storage.NewS3Store(a.s3Client(), c.S3.Bucket, c.S3.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown storage %q", c.Type)
	}
}

func (a *App) newBatchStore(ctx context.Context) (batch.Store, error) {
	c := a.Config.Batch
	switch c.Store {
	case "memory":
		return batch.NewMemoryStore(), nil
	case "redis":
		client, err := redis.NewClient(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
		if err != nil {
			return nil, err
		}
		a.onClose(client.Close)
		return redis.NewBatchStore(client, redis.Options{Prefix: c.Prefix, TTL: c.TTL}), nil
	default:
		return nil, fmt.Errorf("unknown batch store %q", c.Store)
	}
}

func (a *App) newHistoryRepository(ctx context.Context) (chathistory.Repository, error) {
	c := a.Config.ChatHistory
	switch c.Store {
	case "memory":
		return inmemory.NewRepository(), nil
	case "postgres":
		repo, err := postgres.Open(ctx, c.DSN)
		if err != nil {
			return nil, err
		}
		a.onClose(repo.Close)
		if err := repo.InitSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown chat history store %q", c.Store)
	}
}
