package rag

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mentorix/backend/internal/llm"
	"github.com/mentorix/backend/internal/models"
	"github.com/mentorix/backend/internal/vectorstore"
)

const (
	answerTemperature = 0.3
	answerMaxTokens   = 1024
	snippetMaxRunes   = 200
)

type Citation struct {
	Index        int       `json:"index"`
	DocumentID   uuid.UUID `json:"document_id"`
	DocumentName string    `json:"document_name"`
	ChunkID      uuid.UUID `json:"chunk_id"`
	Snippet      string    `json:"snippet"`
}

type Answer struct {
	Content      string
	Citations    []Citation
	ChunkIDs     []uuid.UUID
	Model        string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CostUSD      float64
}

// Pipeline answers a question against one tenant's indexed documents.
type Pipeline interface {
	Answer(ctx context.Context, ten *models.Tenant, question string) (*Answer, error)
}

type ModelGateway interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (*llm.Completion, error)
}

type chunkRetriever interface {
	Retrieve(ctx context.Context, ten *models.Tenant, question string) ([]vectorstore.SearchResult, error)
}

type pipeline struct {
	retriever chunkRetriever
	gateway   ModelGateway
}

func NewPipeline(retriever *Retriever, gw ModelGateway) Pipeline {
	return &pipeline{retriever: retriever, gateway: gw}
}

func (p *pipeline) Answer(ctx context.Context, ten *models.Tenant, question string) (*Answer, error) {
	chunks, err := p.retriever.Retrieve(ctx, ten, question)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	if len(chunks) == 0 {
		return &Answer{Content: NoKnowledgeAnswer, Model: ten.LLMModel}, nil
	}

	completion, err := p.gateway.Generate(ctx, llm.GenerateRequest{
		Model:        ten.LLMModel,
		SystemPrompt: buildSystemPrompt(ten.SystemPrompt, buildContext(chunks)),
		Question:     question,
		Temperature:  answerTemperature,
		MaxTokens:    answerMaxTokens,
		APIKey:       ten.ChatKey(),
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	citations := make([]Citation, len(chunks))
	chunkIDs := make([]uuid.UUID, len(chunks))
	for i, c := range chunks {
		citations[i] = Citation{
			Index:        i + 1,
			DocumentID:   c.DocumentID,
			DocumentName: c.DocumentName,
			ChunkID:      c.ChunkID,
			Snippet:      snippet(c.Content),
		}
		chunkIDs[i] = c.ChunkID
	}

	return &Answer{
		Content:      completion.Content,
		Citations:    citations,
		ChunkIDs:     chunkIDs,
		Model:        completion.Model,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
		TotalTokens:  completion.TotalTokens,
		CostUSD:      completion.CostUSD,
	}, nil
}

func snippet(content string) string {
	if utf8.RuneCountInString(content) <= snippetMaxRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:snippetMaxRunes]) + "…"
}
