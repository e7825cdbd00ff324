package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"docqa/internal/domain"
)

type pdfSource struct {
	r *pdf.Reader
}

func openPDF(data []byte) (*pdfSource, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.InvalidParametersf("open pdf: %v", err)
	}
	return &pdfSource{r: r}, nil
}

func (s *pdfSource) NumPages() int { return s.r.NumPage() }

// PageText recovers from decoder panics on malformed content streams.
func (s *pdfSource) PageText(page int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode page %d: %v", page, r)
		}
	}()
	p := s.r.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}
