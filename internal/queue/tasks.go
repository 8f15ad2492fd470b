package queue

const (
	TypeDocumentIngest = "document:ingest"
	TypeTenantReindex  = "tenant:reindex"
)

type DocumentIngestPayload struct {
	DocumentID string `json:"document_id"`
	TenantID   string `json:"tenant_id"`
}

type TenantReindexPayload struct {
	TenantID string `json:"tenant_id"`
}
