package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorix/backend/internal/llm"
	"github.com/mentorix/backend/internal/models"
	"github.com/mentorix/backend/internal/vectorstore"
)

type stubRetriever struct {
	chunks []vectorstore.SearchResult
	err    error
}

func (s *stubRetriever) Retrieve(context.Context, *models.Tenant, string) ([]vectorstore.SearchResult, error) {
	return s.chunks, s.err
}

type stubModelGateway struct {
	lastReq    llm.GenerateRequest
	completion *llm.Completion
	called     int
}

func (s *stubModelGateway) Generate(_ context.Context, req llm.GenerateRequest) (*llm.Completion, error) {
	s.called++
	s.lastReq = req
	return s.completion, nil
}

func testTenant() *models.Tenant {
	prompt := "You are the support bot for Acme GmbH."
	key := "sk-tenant-key"
	return &models.Tenant{
		ID:           uuid.New(),
		LLMModel:     "gpt-4o-mini",
		LLMAPIKey:    &key,
		SystemPrompt: &prompt,
	}
}

func chunk(content string) vectorstore.SearchResult {
	return vectorstore.SearchResult{
		ChunkID:      uuid.New(),
		DocumentID:   uuid.New(),
		DocumentName: "faq.pdf",
		Content:      content,
	}
}

func TestAnswerWithoutChunksSkipsModel(t *testing.T) {
	gw := &stubModelGateway{}
	p := &pipeline{retriever: &stubRetriever{}, gateway: gw}

	ans, err := p.Answer(context.Background(), testTenant(), "anything?")
	require.NoError(t, err)
	assert.Equal(t, NoKnowledgeAnswer, ans.Content)
	assert.Zero(t, ans.TotalTokens)
	assert.Zero(t, gw.called, "no provider call without context")
}

func TestAnswerBuildsGroundedPrompt(t *testing.T) {
	gw := &stubModelGateway{completion: &llm.Completion{
		Content: "See [1].", Model: "gpt-4o-mini",
		InputTokens: 200, OutputTokens: 30, TotalTokens: 230, CostUSD: 0.001,
	}}
	chunks := []vectorstore.SearchResult{chunk("Shipping takes 3 days."), chunk("Returns within 30 days.")}
	p := &pipeline{retriever: &stubRetriever{chunks: chunks}, gateway: gw}

	ans, err := p.Answer(context.Background(), testTenant(), "How long is shipping?")
	require.NoError(t, err)

	assert.Equal(t, "See [1].", ans.Content)
	assert.Equal(t, 230, ans.TotalTokens)
	assert.Len(t, ans.Citations, 2)
	assert.Equal(t, 1, ans.Citations[0].Index)
	assert.Equal(t, "faq.pdf", ans.Citations[0].DocumentName)
	assert.Equal(t, chunks[0].ChunkID, ans.ChunkIDs[0])

	sys := gw.lastReq.SystemPrompt
	assert.Contains(t, sys, "You are the support bot for Acme GmbH.")
	assert.Contains(t, sys, "<context>")
	assert.Contains(t, sys, "[1] Shipping takes 3 days.")
	assert.Contains(t, sys, "[2] Returns within 30 days.")
	assert.True(t, strings.Index(sys, "[1]") < strings.Index(sys, "[2]"))
	assert.Equal(t, "sk-tenant-key", gw.lastReq.APIKey)
	assert.Equal(t, "gpt-4o-mini", gw.lastReq.Model)
}

func TestBuildSystemPromptDefaultPersona(t *testing.T) {
	sys := buildSystemPrompt(nil, "[1] fact")
	assert.Contains(t, sys, defaultPersona)
	assert.Contains(t, sys, "</context>")
}

func TestBuildContextSeparatesChunks(t *testing.T) {
	out := buildContext([]vectorstore.SearchResult{chunk("a"), chunk("b"), chunk("c")})
	assert.Equal(t, "[1] a\n\n---\n\n[2] b\n\n---\n\n[3] c", out)
}

func TestSnippetTruncatesLongChunks(t *testing.T) {
	long := strings.Repeat("ż", 500)
	s := snippet(long)
	assert.Equal(t, snippetMaxRunes+1, len([]rune(s)))
	assert.True(t, strings.HasSuffix(s, "…"))
}
