package lexical

import (
	"sort"
	"strings"

	"docqa/internal/domain"
)

const (
	DefaultTopK = 5

	// phraseBonus is added when the chunk contains the opening of the
	// question verbatim.
	phraseBonus = 2

	// phrasePrefixLen is the number of leading question characters used for
	// the verbatim match.
	phrasePrefixLen = 64
)

// ScoreChunks ranks the session's chunks against question. The score is the
// number of question tokens present in the chunk plus a bonus for a verbatim
// match of the question's first 64 characters. Ties keep ascending chunk
// order. Zero scores are returned like any other; nothing here errors.
func ScoreChunks(question string, session *Session, topK int) []domain.ScoredChunk {
	if session == nil || len(session.Chunks) == 0 {
		return nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	qTokens := Tokenize(question)
	phrase := phrasePrefix(question)

	scored := make([]domain.ScoredChunk, len(session.Chunks))
	for i, ch := range session.Chunks {
		score := 0
		for tok := range qTokens {
			if _, ok := ch.Tokens[tok]; ok {
				score++
			}
		}
		if phrase != "" && strings.Contains(ch.lower, phrase) {
			score += phraseBonus
		}
		scored[i] = domain.ScoredChunk{Chunk: ch.Chunk, Score: score}
	}

	// Session chunks are stored in ascending index order, so a stable sort
	// breaks ties by chunk index.
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK]
}

// AllZero reports whether no result carries a positive score.
func AllZero(results []domain.ScoredChunk) bool {
	for _, r := range results {
		if r.Score > 0 {
			return false
		}
	}
	return true
}

// phrasePrefix is taken from the question as given, whitespace included.
// A blank question has no phrase.
func phrasePrefix(question string) string {
	if strings.TrimSpace(question) == "" {
		return ""
	}
	q := []rune(strings.ToLower(question))
	if len(q) > phrasePrefixLen {
		q = q[:phrasePrefixLen]
	}
	return string(q)
}
