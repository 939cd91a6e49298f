package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // registers the postgres driver
	"github.com/pgvector/pgvector-go"

	"homematch/internal/domain"
)

// Repo implements domain.ListingRepository over Postgres. Vector
// similarity uses pgvector's cosine distance operator; keyword ranking
// uses the generated tsvector column.
type Repo struct{ db *sqlx.DB }

func New(dsn string, maxConn, maxIdleConn int) (*Repo, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &Repo{db: db}, nil
}

// NewFromDB wraps an existing connection; used by the integration tests.
func NewFromDB(db *sqlx.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Close() error { return r.db.Close() }

// Migrate creates the schema if missing.
func (r *Repo) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schemaSQL)
	return err
}

// Search runs one ranked-retrieval pass: structured filters narrow the
// candidate set, then rows are ordered by embedding similarity when a
// query vector is present, by text rank otherwise.
func (r *Repo) Search(ctx context.Context, q domain.ListingQuery) (domain.ListingResult, error) {
	where := []string{"1=1"}
	args := []any{}
	idx := 1

	add := func(cond string, v any) {
		where = append(where, fmt.Sprintf(cond, idx))
		args = append(args, v)
		idx++
	}

	f := q.Filters
	if f.MinPrice != nil {
		add("price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("price <= $%d", *f.MaxPrice)
	}
	if f.Bedrooms != nil {
		add("bedrooms = $%d", *f.Bedrooms)
	}
	if f.Bathrooms != nil {
		add("bathrooms = $%d", *f.Bathrooms)
	}
	if f.PropertyType != nil {
		add("property_type = $%d", string(*f.PropertyType))
	}
	if f.Location != nil {
		add("location ILIKE $%d", "%"+*f.Location+"%")
	}
	if f.MinArea != nil {
		add("area_sqft >= $%d", *f.MinArea)
	}
	if f.MaxArea != nil {
		add("area_sqft <= $%d", *f.MaxArea)
	}
	for _, tag := range f.Features {
		b, _ := json.Marshal([]domain.FeatureTag{tag})
		add("features @> $%d::jsonb", string(b))
	}

	semantic := len(q.Embedding) > 0
	if semantic && q.SimilarityThreshold > 0 {
		where = append(where,
			fmt.Sprintf("embedding IS NOT NULL AND 1 - (embedding <=> $%d) >= $%d", idx, idx+1))
		args = append(args, pgvector.NewVector(q.Embedding), q.SimilarityThreshold)
		idx += 2
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM listings WHERE " + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return domain.ListingResult{}, fmt.Errorf("count: %w", err)
	}

	simExpr := "0"
	orderBy := "text_rank DESC, id"
	if semantic {
		// rows without a stored vector rank at zero rather than NULL
		simExpr = fmt.Sprintf("COALESCE(1 - (embedding <=> $%d), 0)", idx)
		args = append(args, pgvector.NewVector(q.Embedding))
		idx++
		orderBy = "similarity DESC, id"
	}

	selectQuery := fmt.Sprintf(`
SELECT%s,
  ts_rank(search_vector, plainto_tsquery('english', $%d)) AS text_rank,
  %s AS similarity
FROM listings
WHERE %s
ORDER BY %s
LIMIT $%d OFFSET $%d`,
		listingColumns, idx, simExpr, whereClause, orderBy, idx+1, idx+2)
	args = append(args, strings.Join(q.Keywords, " "), q.Limit, q.Offset)

	var listings []domain.RankedListing
	if err := r.db.SelectContext(ctx, &listings, selectQuery, args...); err != nil {
		return domain.ListingResult{}, fmt.Errorf("select: %w", err)
	}
	return domain.ListingResult{Listings: listings, Total: total}, nil
}

func (r *Repo) GetListing(ctx context.Context, id int64) (*domain.Property, error) {
	var p domain.Property
	if err := r.db.GetContext(ctx, &p, getListingSQL, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return &p, nil
}

func (r *Repo) UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error {
	res, err := r.db.ExecContext(ctx, updateEmbeddingSQL, pgvector.NewVector(embedding), id)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// BatchUpdateEmbeddings writes many vectors in one transaction. Each row
// runs under a savepoint: a failed row is rolled back and collected, the
// rest still commit.
func (r *Repo) BatchUpdateEmbeddings(ctx context.Context, ids []int64, embeddings [][]float32) (int, []error) {
	if len(ids) != len(embeddings) {
		return 0, []error{fmt.Errorf("ids/embeddings length mismatch: %d vs %d", len(ids), len(embeddings))}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, []error{fmt.Errorf("begin: %w", err)}
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, updateEmbeddingSQL)
	if err != nil {
		return 0, []error{fmt.Errorf("prepare: %w", err)}
	}
	defer stmt.Close()

	success := 0
	var errs []error
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, "SAVEPOINT batch_row"); err != nil {
			return success, append(errs, fmt.Errorf("savepoint: %w", err))
		}
		if _, err := stmt.ExecContext(ctx, pgvector.NewVector(embeddings[i]), id); err != nil {
			errs = append(errs, fmt.Errorf("listing %d: %w", id, err))
			// unwind the aborted row so the transaction stays usable
			if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT batch_row"); err != nil {
				return success, append(errs, fmt.Errorf("rollback savepoint: %w", err))
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT batch_row"); err != nil {
			return success, append(errs, fmt.Errorf("release savepoint: %w", err))
		}
		success++
	}
	if err := tx.Commit(); err != nil {
		return 0, append(errs, fmt.Errorf("commit: %w", err))
	}
	return success, errs
}

func (r *Repo) ListMissingEmbeddings(ctx context.Context, limit int) ([]domain.Property, error) {
	var out []domain.Property
	if err := r.db.SelectContext(ctx, &out, listMissingEmbeddingsSQL, limit); err != nil {
		return nil, fmt.Errorf("list missing embeddings: %w", err)
	}
	return out, nil
}

func (r *Repo) LogSearch(ctx context.Context, entry domain.SearchLog) error {
	filters, _ := json.Marshal(entry.Filters)
	_, err := r.db.ExecContext(ctx, insertSearchLogSQL,
		entry.Query,
		filters,
		pq.Array(entry.Keywords),
		entry.ResultCount,
		pq.Array(entry.ListingIDs),
		entry.TookMS,
	)
	if err != nil {
		return fmt.Errorf("log search: %w", err)
	}
	return nil
}
