package httpapi

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"docqa/internal/domain"
	"docqa/internal/service"
)

type questionReq struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type publishSessionReq struct {
	Namespace string `json:"namespace"`
	UserID    string `json:"user_id"`
}

type publishDocumentReq struct {
	DocID    string `json:"doc_id"`
	DocName  string `json:"doc_name"`
	Text     string `json:"text"`
	NumPages int    `json:"numpages"`
	UserID   string `json:"user_id"`
	Replace  bool   `json:"replace"`
}

type sessionResp struct {
	SessionID string    `json:"session_id"`
	DocName   string    `json:"doc_name"`
	NumPages  int       `json:"numpages"`
	Chunks    int       `json:"chunks"`
	PagesRead int       `json:"pages_read,omitempty"`
	Truncated bool      `json:"truncated"`
	CreatedAt time.Time `json:"created_at"`
	Summary   string    `json:"summary,omitempty"`
}

func (h *Handler) createSession(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest("multipart field \"file\" is required")
	}
	if fh.Size > h.maxUpload {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest("cannot read upload")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		return badRequest("cannot read upload")
	}
	if int64(len(data)) > h.maxUpload {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}

	ing, err := h.svc.IngestUpload(c.Request().Context(), fh.Filename, data, nil)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sessionResp{
		SessionID: ing.Session.ID,
		DocName:   ing.Session.DocName,
		NumPages:  ing.Session.NumPages,
		Chunks:    len(ing.Session.Chunks),
		PagesRead: ing.Extraction.PagesRead,
		Truncated: ing.Extraction.Truncated,
		CreatedAt: ing.Session.CreatedAt,
	})
}

func (h *Handler) getSession(c echo.Context) error {
	id := c.Param("id")
	sess, err := h.svc.Session(id)
	if err != nil {
		return err
	}
	summary, err := h.svc.Summary(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResp{
		SessionID: sess.ID,
		DocName:   sess.DocName,
		NumPages:  sess.NumPages,
		Chunks:    len(sess.Chunks),
		CreatedAt: sess.CreatedAt,
		Summary:   summary,
	})
}

func (h *Handler) deleteSession(c echo.Context) error {
	if !h.svc.DeleteSession(c.Param("id")) {
		return domain.ErrSessionNotFound
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) searchSession(c echo.Context) error {
	req, err := bindQuestion(c)
	if err != nil {
		return err
	}
	results, err := h.svc.SearchSession(c.Param("id"), req.Question, req.TopK)
	if err != nil {
		return err
	}
	if results == nil {
		results = []domain.ScoredChunk{}
	}
	return c.JSON(http.StatusOK, echo.Map{"results": results})
}

func (h *Handler) askSession(c echo.Context) error {
	req, err := bindQuestion(c)
	if err != nil {
		return err
	}
	ans, err := h.svc.AskSession(c.Request().Context(), c.Param("id"), req.Question)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ans)
}

func (h *Handler) publishSession(c echo.Context) error {
	var req publishSessionReq
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid json")
	}
	id := c.Param("id")
	n, err := h.svc.PublishSession(c.Request().Context(), id, strings.TrimSpace(req.Namespace), req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"namespace": req.Namespace, "doc_id": id, "chunks": n})
}

func (h *Handler) publishDocument(c echo.Context) error {
	var req publishDocumentReq
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid json")
	}
	ns := c.Param("ns")
	n, err := h.svc.PublishDocument(c.Request().Context(), service.PublishRequest{
		Namespace: ns,
		DocID:     strings.TrimSpace(req.DocID),
		DocName:   req.DocName,
		Text:      req.Text,
		NumPages:  req.NumPages,
		UserID:    req.UserID,
		Replace:   req.Replace,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"namespace": ns, "doc_id": req.DocID, "chunks": n})
}

func (h *Handler) deleteDocument(c echo.Context) error {
	if err := h.svc.DeleteDocument(c.Request().Context(), c.Param("ns"), c.Param("doc")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) searchNamespace(c echo.Context) error {
	req, err := bindQuestion(c)
	if err != nil {
		return err
	}
	matches, err := h.svc.SearchNamespace(c.Request().Context(), c.Param("ns"), req.Question, req.TopK)
	if err != nil {
		return err
	}
	if matches == nil {
		matches = []domain.RAGMatch{}
	}
	return c.JSON(http.StatusOK, echo.Map{"matches": matches})
}

func (h *Handler) askNamespace(c echo.Context) error {
	req, err := bindQuestion(c)
	if err != nil {
		return err
	}
	ans, err := h.svc.AskNamespace(c.Request().Context(), c.Param("ns"), req.Question)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ans)
}

func bindQuestion(c echo.Context) (questionReq, error) {
	var req questionReq
	if err := c.Bind(&req); err != nil {
		return req, badRequest("invalid json")
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return req, badRequest("question is required")
	}
	return req, nil
}
