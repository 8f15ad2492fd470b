package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentorix/backend/internal/apperr"
	"github.com/mentorix/backend/internal/models"
	"github.com/mentorix/backend/internal/queue"
	"github.com/mentorix/backend/pkg/textextract"
)

const (
	maxFilenameLen = 120
	maxErrorLen    = 500
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

const documentColumns = `id, tenant_id, name, file_path, mime_type, size_bytes, status, error_message, chunk_count, created_at, updated_at`

// Service owns document records and their files on disk. Uploads are
// accepted synchronously and handed to the worker queue for ingestion.
type Service struct {
	db           *pgxpool.Pool
	queue        *queue.Client
	uploadDir    string
	maxSizeBytes int64
}

func NewService(db *pgxpool.Pool, qc *queue.Client, uploadDir string, maxSizeMB int) *Service {
	return &Service{
		db:           db,
		queue:        qc,
		uploadDir:    uploadDir,
		maxSizeBytes: int64(maxSizeMB) << 20,
	}
}

type UploadRequest struct {
	TenantID uuid.UUID
	Name     string
	MimeType string
	Data     []byte
}

// Upload validates the file, stores it under the tenant's directory and
// queues ingestion. The document starts out pending; the worker moves it
// through processing to done or error.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*models.Document, error) {
	if int64(len(req.Data)) > s.maxSizeBytes {
		return nil, apperr.New(apperr.KindPayloadTooLarge,
			"file is %d bytes, limit is %d", len(req.Data), s.maxSizeBytes)
	}
	if len(req.Data) == 0 {
		return nil, apperr.New(apperr.KindValidation, "file is empty")
	}
	if !textextract.Supported(req.MimeType, req.Name) {
		return nil, apperr.New(apperr.KindUnsupportedFormat,
			"unsupported file type %s", textextract.Describe(req.MimeType))
	}

	docID := uuid.New()
	name := sanitizeFilename(req.Name)
	path := filepath.Join(s.uploadDir, req.TenantID.String(), docID.String()+filepath.Ext(name))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(path, req.Data, 0o644); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}

	var doc models.Document
	err := s.db.QueryRow(ctx,
		`INSERT INTO documents (id, tenant_id, name, file_path, mime_type, size_bytes, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+documentColumns,
		docID, req.TenantID, name, path, req.MimeType, len(req.Data), models.DocStatusPending,
	).Scan(scanTargets(&doc)...)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("insert document: %w", err)
	}

	if err := s.queue.EnqueueDocumentIngest(queue.DocumentIngestPayload{
		DocumentID: docID.String(),
		TenantID:   req.TenantID.String(),
	}); err != nil {
		s.markError(ctx, docID, "failed to queue ingestion")
		return nil, fmt.Errorf("enqueue ingest: %w", err)
	}

	return &doc, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(scanTargets(&doc)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "document not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]models.Document, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(scanTargets(&d)...); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// Delete removes the record, its chunks (by cascade) and the stored file.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	doc, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx,
		"DELETE FROM documents WHERE id = $1 AND tenant_id = $2", id, tenantID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if doc.FilePath != "" {
		if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
			slog.Warn("could not remove document file", "path", doc.FilePath, "error", err)
		}
	}
	return nil
}

// Retry re-queues a failed document. Only documents in the error state
// qualify; the conditional update makes a double retry harmless.
func (s *Service) Retry(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE documents SET status = $3, error_message = NULL, updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND status = $4`,
		id, tenantID, models.DocStatusPending, models.DocStatusError,
	)
	if err != nil {
		return fmt.Errorf("reset document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, tenantID, id); err != nil {
			return err
		}
		return apperr.New(apperr.KindValidation, "only failed documents can be retried")
	}

	return s.queue.EnqueueDocumentIngest(queue.DocumentIngestPayload{
		DocumentID: id.String(),
		TenantID:   tenantID.String(),
	})
}

// Claim moves a pending document to processing. Exactly one worker wins
// when the same task is delivered twice; the loser sees zero rows.
func (s *Service) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE documents SET status = $2, updated_at = NOW()
		 WHERE id = $1 AND status = $3`,
		id, models.DocStatusProcessing, models.DocStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("claim document: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Service) MarkDone(ctx context.Context, id uuid.UUID, chunkCount int) error {
	_, err := s.db.Exec(ctx,
		`UPDATE documents SET status = $2, chunk_count = $3, error_message = NULL, updated_at = NOW()
		 WHERE id = $1`,
		id, models.DocStatusDone, chunkCount,
	)
	if err != nil {
		return fmt.Errorf("mark document done: %w", err)
	}
	return nil
}

func (s *Service) MarkError(ctx context.Context, id uuid.UUID, cause error) {
	s.markError(ctx, id, cause.Error())
}

func (s *Service) markError(ctx context.Context, id uuid.UUID, msg string) {
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	_, err := s.db.Exec(ctx,
		`UPDATE documents SET status = $2, error_message = $3, updated_at = NOW() WHERE id = $1`,
		id, models.DocStatusError, msg,
	)
	if err != nil {
		slog.Error("could not mark document as failed", "document_id", id, "error", err)
	}
}

// ReadFile loads the stored upload for ingestion.
func (s *Service) ReadFile(doc *models.Document) ([]byte, error) {
	data, err := os.ReadFile(doc.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read stored file: %w", err)
	}
	return data, nil
}

// ListDone returns a tenant's finished document IDs, used to fan out a
// reindex after an embedding model change.
func (s *Service) ListDone(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id FROM documents WHERE tenant_id = $1 AND status = $2 ORDER BY created_at`,
		tenantID, models.DocStatusDone,
	)
	if err != nil {
		return nil, fmt.Errorf("list done documents: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// sanitizeFilename keeps the base name safe for disk and display. The
// stored path never uses the raw client name, so traversal sequences in
// it are inert either way.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		name = "upload"
	}
	if len(name) > maxFilenameLen {
		ext := filepath.Ext(name)
		name = name[:maxFilenameLen-len(ext)] + ext
	}
	return name
}

func scanTargets(d *models.Document) []any {
	return []any{
		&d.ID, &d.TenantID, &d.Name, &d.FilePath, &d.MimeType, &d.SizeBytes,
		&d.Status, &d.ErrorMessage, &d.ChunkCount, &d.CreatedAt, &d.UpdatedAt,
	}
}
