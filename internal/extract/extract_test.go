package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/chunker"
	"docqa/internal/domain"
)

// fakePages serves "page N" text and runs onPage after each page is read.
type fakePages struct {
	total  int
	fail   map[int]bool
	onPage func(page int)
}

func (f *fakePages) NumPages() int { return f.total }

func (f *fakePages) PageText(page int) (string, error) {
	if f.onPage != nil {
		defer f.onPage(page)
	}
	if f.fail[page] {
		return "", errors.New("bad content stream")
	}
	return fmt.Sprintf("content of page %d.", page), nil
}

func TestFromPages_PartialOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &fakePages{total: 50, onPage: func(page int) {
		if page == 10 {
			cancel()
		}
	}}

	res := New(nil).FromPages(ctx, "report.pdf", src, nil)

	assert.Equal(t, 50, res.NumPages)
	assert.Equal(t, 10, res.PagesRead)
	assert.True(t, res.Truncated)
	assert.Contains(t, res.Text, "content of page 10.")
	assert.NotContains(t, res.Text, "content of page 11.")
	assert.Len(t, strings.Split(res.Text, "\n"), 10)

	chunks, err := chunker.Chunk(res.Text, res.NumPages, 100, 20)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.GreaterOrEqual(t, ch.Page, 1)
		assert.LessOrEqual(t, ch.Page, 50)
	}
}

func TestFromPages_ExpiredBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := New(nil).FromPages(ctx, "x.pdf", &fakePages{total: 3}, nil)
	assert.Equal(t, 3, res.NumPages)
	assert.Equal(t, 0, res.PagesRead)
	assert.True(t, res.Truncated)
	assert.Empty(t, res.Text)
}

func TestFromPages_SkipsFailedPagesAndReportsProgress(t *testing.T) {
	var seen []string
	src := &fakePages{total: 3, fail: map[int]bool{2: true}}
	res := New(nil).FromPages(context.Background(), "x.pdf", src, func(page, total int) {
		seen = append(seen, fmt.Sprintf("%d/%d", page, total))
	})

	assert.False(t, res.Truncated)
	assert.Equal(t, 3, res.PagesRead)
	assert.Equal(t, "content of page 1.\ncontent of page 3.", res.Text)
	assert.Equal(t, []string{"1/3", "2/3", "3/3"}, seen)
}

func TestExtract_HTML(t *testing.T) {
	page := `<html><head><title> Discharge notes </title></head><body>
<nav><p>Menu</p></nav>
<main><h1>Aftercare</h1><p>Rest for two days.</p><ul><li>Drink water</li></ul></main>
</body></html>`
	var calls int
	res, err := New(nil).Extract(context.Background(), "notes.html", []byte(page), func(int, int) { calls++ })
	require.NoError(t, err)

	assert.Equal(t, "Discharge notes", res.Title)
	assert.Equal(t, "Aftercare\nRest for two days.\nDrink water", res.Text)
	assert.Equal(t, 1, res.NumPages)
	assert.Equal(t, 1, calls)
}

func TestExtract_PlainTextSniffed(t *testing.T) {
	res, err := New(nil).Extract(context.Background(), "upload", []byte("Line one  \r\nLine two\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Line one\nLine two", res.Text)
	assert.Equal(t, "Line one", res.Title)
	assert.Equal(t, 1, res.NumPages)
}

func TestExtract_Rejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"empty", "a.txt", nil},
		{"binary", "blob.bin", []byte{0x00, 0x01, 0x02, 0xff}},
		{"broken pdf", "broken.pdf", []byte("%PDF-1.4 not really")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(nil).Extract(context.Background(), tt.file, tt.data, nil)
			assert.ErrorIs(t, err, domain.ErrInvalidParameters)
		})
	}
}
