// Package extract turns uploaded file bytes into plain text and a page count.
package extract

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"docqa/internal/domain"
	"docqa/internal/logging"
	"docqa/internal/metrics"
)

// Result is the extracted text of one document. NumPages is the page count
// the document reports, even when only PagesRead pages were processed.
type Result struct {
	Title     string
	Text      string
	NumPages  int
	PagesRead int
	Truncated bool
}

// Progress is called after each page with the 1-based page number.
type Progress func(page, total int)

// PageSource yields page text one page at a time. Pages are 1-based.
type PageSource interface {
	NumPages() int
	PageText(page int) (string, error)
}

// Extractor dispatches on file type.
type Extractor struct {
	logger *slog.Logger
}

// New creates an Extractor. A nil logger discards output.
func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logging.OrDiscard(logger)}
}

// Extract reads data as PDF, HTML or plain text. For PDFs ctx is checked
// before every page; once it is done the pages read so far are returned
// without an error.
func (e *Extractor) Extract(ctx context.Context, name string, data []byte, progress Progress) (Result, error) {
	if len(data) == 0 {
		return Result{}, domain.InvalidParametersf("empty upload %q", name)
	}
	switch kind(name, data) {
	case "pdf":
		src, err := openPDF(data)
		if err != nil {
			return Result{}, err
		}
		res := e.FromPages(ctx, name, src, progress)
		res.Title = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		return res, nil
	case "html":
		text, title, err := htmlText(data)
		if err != nil {
			return Result{}, domain.InvalidParametersf("parse html %q: %v", name, err)
		}
		report(progress, 1, 1)
		return Result{Title: title, Text: text, NumPages: 1, PagesRead: 1}, nil
	case "text":
		text := cleanWhitespace(string(data))
		report(progress, 1, 1)
		return Result{Title: guessTitleFromText(text), Text: text, NumPages: 1, PagesRead: 1}, nil
	default:
		return Result{}, domain.InvalidParametersf("unsupported file type for %q", name)
	}
}

// FromPages reads src page by page until it is exhausted or ctx is done.
// Pages that fail to decode are logged and skipped.
func (e *Extractor) FromPages(ctx context.Context, name string, src PageSource, progress Progress) Result {
	total := src.NumPages()
	res := Result{NumPages: total}
	var parts []string
	for page := 1; page <= total; page++ {
		if ctx.Err() != nil {
			res.Truncated = true
			break
		}
		text, err := src.PageText(page)
		res.PagesRead = page
		if err != nil {
			e.logger.Warn("skipping unreadable page", "doc", name, "page", page, "err", err)
		} else if t := strings.TrimSpace(text); t != "" {
			parts = append(parts, t)
		}
		report(progress, page, total)
	}
	res.Text = strings.Join(parts, "\n")
	if res.Truncated {
		metrics.ExtractionsTruncated.Add(1)
		e.logger.Warn("extraction stopped early, using partial text",
			"doc", name, "pages_read", res.PagesRead, "num_pages", total, "cause", context.Cause(ctx))
	}
	return res
}

func report(p Progress, page, total int) {
	if p != nil {
		p(page, total)
	}
}

func kind(name string, data []byte) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "pdf"
	case ".html", ".htm":
		return "html"
	case ".txt", ".md", ".text":
		return "text"
	}
	ct := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(ct, "application/pdf"):
		return "pdf"
	case strings.HasPrefix(ct, "text/html"):
		return "html"
	case strings.HasPrefix(ct, "text/plain"):
		return "text"
	}
	return ""
}

// htmlText extracts main content: article/main, then headers, paragraphs
// and list items.
func htmlText(b []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return "", "", err
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())

	var parts []string
	sel := doc.Find("main, article")
	if sel.Length() == 0 {
		sel = doc.Selection
	}
	sel.Find("h1,h2,h3,h4,p,li,td").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return cleanWhitespace(strings.Join(parts, "\n")), title, nil
}

var wsRX = regexp.MustCompile(`[ \t]+\n`)

func cleanWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.TrimSpace(wsRX.ReplaceAllString(s, "\n"))
}

func guessTitleFromText(s string) string {
	line := strings.SplitN(strings.TrimSpace(s), "\n", 2)[0]
	if r := []rune(line); len(r) > 120 {
		line = string(r[:120])
	}
	return line
}
