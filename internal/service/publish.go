package service

import (
	"context"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/metrics"
	"docqa/internal/vectorstore"
)

// PublishRequest describes a document to write into a namespace.
type PublishRequest struct {
	Namespace string
	DocID     string
	DocName   string
	Text      string
	NumPages  int
	// UserID defaults to Namespace.
	UserID string
	// Replace removes the document's existing entries first, so a shorter
	// re-publication leaves no stale chunks behind.
	Replace bool
}

// PublishDocument chunks, embeds and upserts a document. It returns the
// number of chunks written.
func (s *Service) PublishDocument(ctx context.Context, req PublishRequest) (int, error) {
	if err := validatePublish(req.Namespace, req.DocID); err != nil {
		return 0, err
	}
	if err := s.vectorDeps(); err != nil {
		return 0, err
	}
	chunks := s.chunker.Chunk(req.Text, req.NumPages)
	if len(chunks) == 0 {
		return 0, domain.InvalidParametersf("document %q has no text to publish", req.DocID)
	}
	return s.publishChunks(ctx, req, chunks)
}

// PublishSession promotes a session's chunks into a namespace, using the
// session id as the document id.
func (s *Service) PublishSession(ctx context.Context, sessionID, namespace, userID string) (int, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return 0, err
	}
	if err := validatePublish(namespace, sess.ID); err != nil {
		return 0, err
	}
	if err := s.vectorDeps(); err != nil {
		return 0, err
	}
	chunks := sess.PlainChunks()
	if len(chunks) == 0 {
		return 0, domain.InvalidParametersf("session %q has no text to publish", sessionID)
	}
	return s.publishChunks(ctx, PublishRequest{
		Namespace: namespace,
		DocID:     sess.ID,
		DocName:   sess.DocName,
		NumPages:  sess.NumPages,
		UserID:    userID,
	}, chunks)
}

// DeleteDocument removes every entry of docID from namespace.
func (s *Service) DeleteDocument(ctx context.Context, namespace, docID string) error {
	if err := validatePublish(namespace, docID); err != nil {
		return err
	}
	if s.index == nil {
		return domain.Configurationf("no vector store configured")
	}
	err := s.withRetry(ctx, "delete document", func(ctx context.Context) error {
		return s.index.DeleteDocument(ctx, namespace, docID)
	})
	if err == nil {
		s.log.Info("document deleted", "namespace", namespace, "doc_id", docID)
	}
	return err
}

func (s *Service) publishChunks(ctx context.Context, req PublishRequest, chunks []domain.Chunk) (int, error) {
	userID := req.UserID
	if userID == "" {
		userID = req.Namespace
	}
	if req.Replace {
		if err := s.DeleteDocument(ctx, req.Namespace, req.DocID); err != nil {
			return 0, err
		}
	}

	written := 0
	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		metas := make([]domain.RAGMetadata, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Text
			metas[i] = domain.RAGMetadata{
				UserID:     userID,
				DocID:      req.DocID,
				DocName:    req.DocName,
				Page:       ch.Page,
				ChunkIndex: ch.ChunkIndex,
				Text:       ch.Text,
			}
		}

		var vectors [][]float32
		err := s.withRetry(ctx, "embed batch", func(ctx context.Context) error {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			var err error
			vectors, err = s.embedder.EmbedBatch(ctx, texts)
			return err
		})
		if err != nil {
			return written, err
		}
		err = s.withRetry(ctx, "upsert", func(ctx context.Context) error {
			return s.index.Upsert(ctx, req.Namespace, vectors, metas)
		})
		if err != nil {
			return written, err
		}
		written += len(batch)
		metrics.ChunksUpserted.Add(int64(len(batch)))
		s.log.Debug("published batch", "namespace", req.Namespace, "doc_id", req.DocID, "from", start, "to", end)
	}
	metrics.DocumentsPublished.Add(1)
	s.log.Info("document published", "namespace", req.Namespace, "doc_id", req.DocID, "chunks", written)
	return written, nil
}

func validatePublish(namespace, docID string) error {
	if strings.TrimSpace(namespace) == "" {
		return domain.InvalidParametersf("namespace is required")
	}
	if strings.TrimSpace(docID) == "" {
		return domain.InvalidParametersf("doc id is required")
	}
	if strings.Contains(docID, vectorstore.EntrySeparator) {
		return domain.InvalidParametersf("doc id %q must not contain %q", docID, vectorstore.EntrySeparator)
	}
	return nil
}
