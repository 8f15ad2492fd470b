package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/mentorix/backend/internal/apperr"
)

// PgVectorStore keeps chunk vectors in Postgres with the pgvector
// extension. Search only ever sees chunks whose parent document has
// finished ingesting.
type PgVectorStore struct {
	db  *pgxpool.Pool
	dim int
}

func NewPgVectorStore(db *pgxpool.Pool, dim int) *PgVectorStore {
	return &PgVectorStore{db: db, dim: dim}
}

// Replace swaps a document's chunks atomically: old rows go away and the
// new set lands in one transaction, so a reindex never leaves a document
// half-indexed.
func (s *PgVectorStore) Replace(ctx context.Context, tenantID, documentID uuid.UUID, chunks []Chunk) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"DELETE FROM document_chunks WHERE tenant_id = $1 AND document_id = $2",
		tenantID, documentID,
	)
	if err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	for _, c := range chunks {
		if len(c.Embedding) != s.dim {
			return apperr.New(apperr.KindDimensionMismatch,
				"chunk %d has %d dimensions, need %d", c.ChunkIndex, len(c.Embedding), s.dim)
		}

		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO document_chunks (id, tenant_id, document_id, chunk_index, content, embedding, token_count)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, tenantID, documentID, c.ChunkIndex, c.Content, pgvector.NewVector(c.Embedding), c.TokenCount,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	return tx.Commit(ctx)
}

// Search ranks a tenant's chunks by cosine distance to the query vector.
// A window over each document caps its contribution at MaxPerDoc; ties on
// distance break toward the earlier chunk in the document.
func (s *PgVectorStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error) {
	if len(query) != s.dim {
		return nil, apperr.New(apperr.KindDimensionMismatch,
			"query has %d dimensions, need %d", len(query), s.dim)
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.MaxPerDoc <= 0 {
		opts.MaxPerDoc = opts.TopK
	}

	rows, err := s.db.Query(ctx,
		`WITH ranked AS (
			SELECT c.id, c.document_id, d.name AS document_name, c.content, c.chunk_index,
			       c.embedding <=> $1 AS distance,
			       ROW_NUMBER() OVER (
			           PARTITION BY c.document_id
			           ORDER BY c.embedding <=> $1, c.chunk_index
			       ) AS doc_rank
			FROM document_chunks c
			JOIN documents d ON d.id = c.document_id
			WHERE c.tenant_id = $2
			  AND d.status = 'done'
			  AND c.id <> ALL($3::uuid[])
		)
		SELECT id, document_id, document_name, content, chunk_index, 1 - distance AS score
		FROM ranked
		WHERE doc_rank <= $4
		ORDER BY distance, chunk_index
		LIMIT $5`,
		pgvector.NewVector(query), opts.TenantID, uuidStrings(opts.ExcludeIDs), opts.MaxPerDoc, opts.TopK,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	return scanResults(rows.Next, rows.Scan, true)
}

// SearchKeywords finds chunks containing any of the given stems,
// case-insensitively. It backs up vector search for rare literal terms
// like part numbers that embeddings place poorly.
func (s *PgVectorStore) SearchKeywords(ctx context.Context, tenantID uuid.UUID, stems []string, limit int, excludeIDs []uuid.UUID) ([]SearchResult, error) {
	if len(stems) == 0 || limit <= 0 {
		return nil, nil
	}

	patterns := make([]string, len(stems))
	for i, stem := range stems {
		patterns[i] = "%" + stem + "%"
	}

	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.document_id, d.name, c.content, c.chunk_index
		 FROM document_chunks c
		 JOIN documents d ON d.id = c.document_id
		 WHERE c.tenant_id = $1
		   AND d.status = 'done'
		   AND c.content ILIKE ANY($2)
		   AND c.id <> ALL($3::uuid[])
		 ORDER BY c.document_id, c.chunk_index
		 LIMIT $4`,
		tenantID, patterns, uuidStrings(excludeIDs), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	return scanResults(rows.Next, rows.Scan, false)
}

// CountReady reports how many chunks the tenant can search over.
func (s *PgVectorStore) CountReady(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM document_chunks c
		 JOIN documents d ON d.id = c.document_id
		 WHERE c.tenant_id = $1 AND d.status = 'done'`,
		tenantID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count ready chunks: %w", err)
	}
	return count, nil
}

// FetchAll returns every searchable chunk in document order. Used for
// small corpora where sending everything beats similarity ranking.
func (s *PgVectorStore) FetchAll(ctx context.Context, tenantID uuid.UUID) ([]SearchResult, error) {
	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.document_id, d.name, c.content, c.chunk_index
		 FROM document_chunks c
		 JOIN documents d ON d.id = c.document_id
		 WHERE c.tenant_id = $1 AND d.status = 'done'
		 ORDER BY c.document_id, c.chunk_index`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch all chunks: %w", err)
	}
	defer rows.Close()

	return scanResults(rows.Next, rows.Scan, false)
}

func (s *PgVectorStore) DeleteDocument(ctx context.Context, tenantID, documentID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		"DELETE FROM document_chunks WHERE tenant_id = $1 AND document_id = $2",
		tenantID, documentID,
	)
	return err
}

func (s *PgVectorStore) DeleteTenant(ctx context.Context, tenantID uuid.UUID) error {
	_, err := s.db.Exec(ctx, "DELETE FROM document_chunks WHERE tenant_id = $1", tenantID)
	return err
}

// uuidStrings renders IDs for a ::uuid[] parameter. An empty slice still
// produces a valid array so the <> ALL predicate stays true.
func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func scanResults(next func() bool, scan func(...any) error, withScore bool) ([]SearchResult, error) {
	var results []SearchResult
	for next() {
		var r SearchResult
		var err error
		if withScore {
			err = scan(&r.ChunkID, &r.DocumentID, &r.DocumentName, &r.Content, &r.ChunkIndex, &r.Score)
		} else {
			err = scan(&r.ChunkID, &r.DocumentID, &r.DocumentName, &r.Content, &r.ChunkIndex)
		}
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, nil
}
