package service

import (
	"context"
	"fmt"

	"docqa/internal/domain"
	"docqa/internal/generation"
	"docqa/internal/lexical"
	"docqa/internal/metrics"
)

// Source points at a chunk that grounded an answer.
type Source struct {
	DocID      string  `json:"doc_id,omitempty"`
	DocName    string  `json:"doc_name,omitempty"`
	Page       int     `json:"page"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
	Text       string  `json:"text,omitempty"`
}

// Answer is a generated reply. Found is false when retrieval produced no
// usable context; Text is then NoRelevantContent and Sources is empty.
type Answer struct {
	Text    string   `json:"text"`
	Found   bool     `json:"found"`
	Sources []Source `json:"sources"`
}

func noRelevantContent() Answer {
	return Answer{Text: NoRelevantContent, Sources: []Source{}}
}

// AnswerFromNamespace embeds question and queries namespace. Matches come
// back in store order.
func (s *Service) AnswerFromNamespace(ctx context.Context, namespace, question string) ([]domain.RAGMatch, error) {
	return s.SearchNamespace(ctx, namespace, question, s.topK)
}

// SearchNamespace is AnswerFromNamespace with an explicit result count.
// topK <= 0 selects the configured default.
func (s *Service) SearchNamespace(ctx context.Context, namespace, question string, topK int) ([]domain.RAGMatch, error) {
	if topK <= 0 {
		topK = s.topK
	}
	if namespace == "" {
		return nil, domain.InvalidParametersf("namespace is required")
	}
	if err := s.vectorDeps(); err != nil {
		return nil, err
	}
	var vec []float32
	err := s.withRetry(ctx, "embed query", func(ctx context.Context) error {
		var err error
		vec, err = s.embedder.Embed(ctx, question)
		return err
	})
	if err != nil {
		return nil, err
	}
	var matches []domain.RAGMatch
	err = s.withRetry(ctx, "query", func(ctx context.Context) error {
		var err error
		matches, err = s.index.Query(ctx, namespace, vec, topK)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.NamespaceQueries.Add(1)
	return matches, nil
}

// AskSession answers question from a session's lexical index.
func (s *Service) AskSession(ctx context.Context, sessionID, question string) (Answer, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return Answer{}, err
	}
	metrics.SessionQueries.Add(1)
	results := lexical.ScoreChunks(question, sess, s.topK)
	if lexical.AllZero(results) {
		s.log.Debug("no lexical overlap", "session_id", sessionID)
		return noRelevantContent(), nil
	}

	var passages []generation.Passage
	var sources []Source
	for _, r := range results {
		if r.Score <= 0 {
			continue
		}
		passages = append(passages, generation.Passage{DocName: sess.DocName, Page: r.Chunk.Page, Text: r.Chunk.Text})
		sources = append(sources, Source{
			DocID:      sess.ID,
			DocName:    sess.DocName,
			Page:       r.Chunk.Page,
			ChunkIndex: r.Chunk.ChunkIndex,
			Score:      float64(r.Score),
			Text:       r.Chunk.Text,
		})
	}
	return s.generate(ctx, question, passages, sources)
}

// AskNamespace answers question from the vector index. Matches without
// metadata or at or below the minimum score are not used as context.
func (s *Service) AskNamespace(ctx context.Context, namespace, question string) (Answer, error) {
	matches, err := s.AnswerFromNamespace(ctx, namespace, question)
	if err != nil {
		return Answer{}, err
	}
	var passages []generation.Passage
	var sources []Source
	for _, m := range matches {
		if m.Metadata == nil || m.Metadata.Text == "" || m.Score <= s.minScore {
			continue
		}
		md := m.Metadata
		passages = append(passages, generation.Passage{DocName: md.DocName, Page: md.Page, Text: md.Text})
		sources = append(sources, Source{
			DocID:      md.DocID,
			DocName:    md.DocName,
			Page:       md.Page,
			ChunkIndex: md.ChunkIndex,
			Score:      m.Score,
			Text:       md.Text,
		})
	}
	if len(passages) == 0 {
		s.log.Debug("no usable matches", "namespace", namespace, "matches", len(matches))
		return noRelevantContent(), nil
	}
	return s.generate(ctx, question, passages, sources)
}

func (s *Service) generate(ctx context.Context, question string, passages []generation.Passage, sources []Source) (Answer, error) {
	prompt := generation.BuildPrompt(question, passages)
	var text string
	err := s.withRetry(ctx, "generate", func(ctx context.Context) error {
		var err error
		text, err = s.generator.Generate(ctx, prompt, passages)
		return err
	})
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	if text == "" {
		return noRelevantContent(), nil
	}
	return Answer{Text: text, Found: true, Sources: sources}, nil
}
