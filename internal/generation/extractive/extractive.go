// Package extractive answers and summarizes by selecting sentences from the
// source text. It needs no model API and is the default generator.
package extractive

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"docqa/internal/generation"
)

// DefaultMaxSentences bounds answers and summaries when no limit is set.
const DefaultMaxSentences = 3

var (
	tokenPattern    = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’]\p{L}+)*`)
	sentencePattern = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// Generator ranks passage sentences by overlap with the question.
type Generator struct {
	maxSentences int
	stopwords    map[string]struct{}
}

var _ generation.Generator = (*Generator)(nil)

// New creates an extractive generator. maxSentences <= 0 selects the default.
func New(maxSentences int) *Generator {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	return &Generator{maxSentences: maxSentences, stopwords: defaultStopwords()}
}

func (g *Generator) Name() string { return "extractive" }

type candidate struct {
	order int
	text  string
	page  int
	score float64
}

// weigh scores a sentence as the summed weight of its content tokens,
// damped by sqrt of their count so long sentences do not win by length.
func (g *Generator) weigh(sentence string, weight func(tok string) float64) float64 {
	toks := g.contentTokens(sentence)
	if len(toks) == 0 {
		return 0
	}
	score := 0.0
	for tok := range toks {
		score += weight(tok)
	}
	return score / math.Sqrt(float64(len(toks)))
}

// pick keeps the n best candidates in document order. With relevantOnly,
// zero-score candidates are dropped once one has been picked.
func pick(cands []candidate, n int, relevantOnly bool) []candidate {
	sorted := append([]candidate(nil), cands...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].score > sorted[j].score })
	var picked []candidate
	for _, c := range sorted {
		if len(picked) == n {
			break
		}
		if relevantOnly && c.score <= 0 && len(picked) > 0 {
			break
		}
		picked = append(picked, c)
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].order < picked[j].order })
	return picked
}

// Generate quotes the sentences that share the most content words with the
// question, each followed by its page reference.
func (g *Generator) Generate(ctx context.Context, prompt generation.Prompt, passages []generation.Passage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	query := g.contentTokens(prompt.Question)
	inQuery := func(tok string) float64 {
		if _, ok := query[tok]; ok {
			return 1
		}
		return 0
	}

	var cands []candidate
	for _, p := range passages {
		for _, s := range splitSentences(p.Text) {
			cands = append(cands, candidate{order: len(cands), text: s, page: p.Page, score: g.weigh(s, inQuery)})
		}
	}
	if len(cands) == 0 {
		return "", nil
	}

	picked := pick(cands, g.maxSentences, true)
	out := make([]string, len(picked))
	for i, c := range picked {
		out[i] = fmt.Sprintf("%s [p. %d]", c.text, c.page)
	}
	return strings.Join(out, " "), nil
}

// Summarize picks the sentences whose content words recur most across the
// text. Weights are the share of sentences a word appears in, relative to
// the most widespread word.
func (g *Generator) Summarize(text string, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = g.maxSentences
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}

	spread := map[string]float64{}
	widest := 0.0
	for _, sent := range sentences {
		for tok := range g.contentTokens(sent) {
			spread[tok]++
			widest = max(widest, spread[tok])
		}
	}
	common := func(tok string) float64 { return spread[tok] / widest }

	cands := make([]candidate, len(sentences))
	for i, sent := range sentences {
		cands[i] = candidate{order: i, text: sent}
		if widest > 0 {
			cands[i].score = g.weigh(sent, common)
		}
	}

	picked := pick(cands, maxSentences, false)
	out := make([]string, len(picked))
	for i, c := range picked {
		out[i] = c.text
	}
	return strings.Join(out, " ")
}

func splitSentences(text string) []string {
	var out []string
	end := 0
	for _, loc := range sentencePattern.FindAllStringIndex(text, -1) {
		if t := strings.TrimSpace(text[loc[0]:loc[1]]); t != "" {
			out = append(out, t)
		}
		end = loc[1]
	}
	// Chunk windows often end mid-sentence.
	if rest := strings.TrimSpace(text[end:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

func (g *Generator) tokens(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func (g *Generator) contentTokens(text string) map[string]struct{} {
	m := make(map[string]struct{})
	for _, t := range g.tokens(text) {
		if _, stop := g.stopwords[t]; stop {
			continue
		}
		m[t] = struct{}{}
	}
	return m
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now", "what", "which", "who", "how", "does", "do", "i", "my",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
