package pgvector

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Abraxas-365/coursekb/vectorstore"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"
)

const storeName = "pgvector"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Distance represents the distance calculation method
type Distance string

const (
	Cosine       Distance = "cosine"
	Euclidean    Distance = "euclidean"
	InnerProduct Distance = "inner_product"
)

// IsValid checks if the distance metric is valid
func (d Distance) IsValid() bool {
	switch d {
	case Cosine, Euclidean, InnerProduct:
		return true
	default:
		return false
	}
}

// DBPool is the subset of pgxpool.Pool the store needs
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Close()
}

type PGVectorStore struct {
	pool      DBPool
	tableName string
	dimension int
	distance  Distance
}

var _ vectorstore.Store = (*PGVectorStore)(nil)

type Options struct {
	TableName string
	Dimension int
	Distance  Distance
}

func (o *Options) validate() error {
	if o.TableName == "" {
		o.TableName = "documents"
	}
	if o.Distance == "" {
		o.Distance = Cosine
	}
	if o.Dimension <= 0 {
		o.Dimension = 1536
	}
	if !o.Distance.IsValid() {
		return fmt.Errorf("invalid distance metric: %s", o.Distance)
	}
	if !identifier.MatchString(o.TableName) {
		return fmt.Errorf("invalid table name: %q", o.TableName)
	}
	return nil
}

// getOperatorAndFunction returns the appropriate operator and index operator class based on distance metric
func (p *PGVectorStore) getOperatorAndFunction() (string, string) {
	switch p.distance {
	case Euclidean:
		return "<->", "vector_l2_ops"
	case InnerProduct:
		return "<#>", "vector_ip_ops"
	default:
		return "<=>", "vector_cosine_ops"
	}
}

func NewPGVectorStore(ctx context.Context, connString string, opts Options) (*PGVectorStore, error) {
	if err := opts.validate(); err != nil {
		return nil, vectorstore.NewInitFailedError(storeName, err)
	}

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, vectorstore.NewInitFailedError(storeName, fmt.Errorf("error parsing connection string: %w", err))
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, vectorstore.NewInitFailedError(storeName, fmt.Errorf("error creating connection pool: %w", err))
	}

	return NewPGVectorStoreWithPool(pool, opts)
}

// NewPGVectorStoreWithPool wraps an existing pool, for tests with pgxmock
func NewPGVectorStoreWithPool(pool DBPool, opts Options) (*PGVectorStore, error) {
	if err := opts.validate(); err != nil {
		return nil, vectorstore.NewInitFailedError(storeName, err)
	}
	return &PGVectorStore{
		pool:      pool,
		tableName: opts.TableName,
		dimension: opts.Dimension,
		distance:  opts.Distance,
	}, nil
}

// InitDB creates the extension, the chunk table and its ivfflat index
func (p *PGVectorStore) InitDB(ctx context.Context, forceRecreate bool) error {
	if _, err := p.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return vectorstore.NewInitFailedError(storeName, fmt.Errorf("error creating vector extension: %w", err))
	}

	if forceRecreate {
		if _, err := p.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", p.tableName)); err != nil {
			return vectorstore.NewInitFailedError(storeName, fmt.Errorf("error dropping table: %w", err))
		}
	}

	createTableSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB,
			embedding vector(%d),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)`, p.tableName, p.dimension)

	if _, err := p.pool.Exec(ctx, createTableSQL); err != nil {
		return vectorstore.NewInitFailedError(storeName, fmt.Errorf("error creating table: %w", err))
	}

	_, opClass := p.getOperatorAndFunction()
	indexSQL := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING ivfflat (embedding %s) WITH (lists = 100)`,
		p.tableName, p.tableName, opClass)

	if _, err := p.pool.Exec(ctx, indexSQL); err != nil {
		return vectorstore.NewInitFailedError(storeName, fmt.Errorf("error creating index: %w", err))
	}

	return nil
}

func (p *PGVectorStore) AddDocuments(ctx context.Context, docs []vectorstore.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return vectorstore.NewInvalidDimensionsError(storeName, len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}

	insertSQL := fmt.Sprintf(`INSERT INTO %s (id, content, metadata, embedding) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`,
		p.tableName)

	batch := &pgx.Batch{}
	for i, doc := range docs {
		if len(vectors[i]) != p.dimension {
			return vectorstore.NewInvalidDimensionsError(storeName, p.dimension, len(vectors[i]))
		}
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return vectorstore.NewAddFailedError(storeName, fmt.Errorf("metadata of document %d: %w", i, err))
		}
		batch.Queue(insertSQL, doc.ID, doc.PageContent, meta, pgv.NewVector(vectors[i]))
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range docs {
		if _, err := results.Exec(); err != nil {
			return vectorstore.NewAddFailedError(storeName, fmt.Errorf("error inserting document %d: %w", i, err))
		}
	}

	return nil
}

// scoreExpr turns the distance operator into a higher-is-better score
func (p *PGVectorStore) scoreExpr(operator string) string {
	switch p.distance {
	case InnerProduct:
		return fmt.Sprintf("(embedding %s $1) * -1", operator)
	case Euclidean:
		return fmt.Sprintf("1 / (1 + (embedding %s $1))", operator)
	default:
		return fmt.Sprintf("1 - (embedding %s $1)", operator)
	}
}

// whereClause renders metadata equality conditions starting at placeholder $start
func whereClause(filter vectorstore.Filter, start int) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		if !identifier.MatchString(k) {
			return "", nil, vectorstore.NewInvalidFilterError(storeName, "unsupported key "+k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conditions := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = fmt.Sprint(filter[k])
		conditions[i] = fmt.Sprintf("metadata->>'%s' = $%d", k, start+i)
	}
	return "WHERE " + strings.Join(conditions, " AND "), args, nil
}

func (p *PGVectorStore) SimilaritySearch(ctx context.Context, vector []float32, limit int, filter vectorstore.Filter) ([]vectorstore.Document, error) {
	if limit <= 0 {
		return nil, vectorstore.NewInvalidLimitError(storeName, limit)
	}

	operator, _ := p.getOperatorAndFunction()

	where, filterArgs, err := whereClause(filter, 3)
	if err != nil {
		return nil, err
	}
	args := append([]any{pgv.NewVector(vector), limit}, filterArgs...)

	query := fmt.Sprintf(`SELECT id, content, metadata, %s AS similarity FROM %s %s ORDER BY embedding %s $1 LIMIT $2`,
		p.scoreExpr(operator), p.tableName, where, operator)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, vectorstore.NewSearchFailedError(storeName, err)
	}
	defer rows.Close()

	var docs []vectorstore.Document
	for rows.Next() {
		var (
			doc   vectorstore.Document
			meta  []byte
			score float64
		)
		if err := rows.Scan(&doc.ID, &doc.PageContent, &meta, &score); err != nil {
			return nil, vectorstore.NewSearchFailedError(storeName, fmt.Errorf("error scanning row: %w", err))
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &doc.Metadata); err != nil {
				return nil, vectorstore.NewSearchFailedError(storeName, fmt.Errorf("error decoding metadata: %w", err))
			}
		}
		doc.Score = float32(score)
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, vectorstore.NewSearchFailedError(storeName, fmt.Errorf("error iterating rows: %w", err))
	}

	return docs, nil
}

func (p *PGVectorStore) Delete(ctx context.Context, filter vectorstore.Filter) error {
	where, args, err := whereClause(filter, 1)
	if err != nil {
		return err
	}

	query := strings.TrimSpace(fmt.Sprintf("DELETE FROM %s %s", p.tableName, where))
	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return vectorstore.NewDeleteFailedError(storeName, err)
	}

	return nil
}

// Close closes the database connection pool
func (p *PGVectorStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}
