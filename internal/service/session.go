package service

import (
	"context"
	"fmt"

	"docqa/internal/domain"
	"docqa/internal/extract"
	"docqa/internal/lexical"
	"docqa/internal/metrics"
)

// Ingest is the outcome of IngestUpload.
type Ingest struct {
	Session    *lexical.Session
	Extraction extract.Result
}

// BuildSession chunks text and registers it as a new lexical session.
// numpages below 1 is recorded as 1.
func (s *Service) BuildSession(docName, text string, numpages int) *lexical.Session {
	if numpages < 1 {
		numpages = 1
	}
	chunks := s.chunker.Chunk(text, numpages)
	sess := s.sessions.CreateSession(docName, numpages, chunks)
	s.log.Info("session built", "session_id", sess.ID, "doc_name", docName, "numpages", numpages, "chunks", len(chunks))
	return sess
}

// Extract reads an uploaded file within the extraction budget. When the
// budget runs out the pages read so far are returned with Truncated set.
// Cancellation by the caller is still an error.
func (s *Service) Extract(ctx context.Context, name string, data []byte, progress extract.Progress) (extract.Result, error) {
	ectx, cancel := context.WithTimeout(ctx, s.extractTimeout)
	defer cancel()
	res, err := s.extractor.Extract(ectx, name, data, progress)
	if err != nil {
		return extract.Result{}, fmt.Errorf("extract %s: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		return extract.Result{}, err
	}
	return res, nil
}

// IngestUpload extracts an uploaded file and builds a session from whatever
// text was recovered.
func (s *Service) IngestUpload(ctx context.Context, name string, data []byte, progress extract.Progress) (Ingest, error) {
	res, err := s.Extract(ctx, name, data, progress)
	if err != nil {
		return Ingest{}, err
	}
	sess := s.BuildSession(name, res.Text, res.NumPages)
	return Ingest{Session: sess, Extraction: res}, nil
}

// AnswerFromSession returns the top chunks of a session for question.
func (s *Service) AnswerFromSession(sessionID, question string) ([]domain.ScoredChunk, error) {
	return s.SearchSession(sessionID, question, s.topK)
}

// SearchSession is AnswerFromSession with an explicit result count.
// topK <= 0 selects the configured default.
func (s *Service) SearchSession(sessionID, question string, topK int) ([]domain.ScoredChunk, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = s.topK
	}
	metrics.SessionQueries.Add(1)
	return lexical.ScoreChunks(question, sess, topK), nil
}

// Session returns the session for id or ErrSessionNotFound.
func (s *Service) Session(id string) (*lexical.Session, error) {
	sess, ok := s.sessions.GetSession(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return sess, nil
}

// DeleteSession evicts a session. It reports whether it existed.
func (s *Service) DeleteSession(id string) bool {
	return s.sessions.Delete(id)
}

// Summary returns a short extractive overview of a session's document.
func (s *Service) Summary(sessionID string) (string, error) {
	sess, err := s.Session(sessionID)
	if err != nil {
		return "", err
	}
	text := documentText(sess.PlainChunks())
	if s.summarizer == nil {
		r := []rune(text)
		if len(r) > 280 {
			r = r[:280]
		}
		return string(r), nil
	}
	return s.summarizer.Summarize(text, s.summarySentences), nil
}

// documentText rebuilds the original text from overlapping chunks.
func documentText(chunks []domain.Chunk) string {
	var out []rune
	end := 0
	for _, ch := range chunks {
		r := []rune(ch.Text)
		if skip := end - ch.Start; skip > 0 {
			if skip >= len(r) {
				continue
			}
			r = r[skip:]
		}
		out = append(out, r...)
		end = ch.End
	}
	return string(out)
}
