package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-ledger/internal/common"
	"github.com/joseph-ayodele/invoice-ledger/internal/export"
	"github.com/joseph-ayodele/invoice-ledger/internal/ledger"
	"github.com/joseph-ayodele/invoice-ledger/internal/pipeline"
)

// MaxUploadBytes bounds a single uploaded document.
const MaxUploadBytes = 32 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	sessions *Sessions
	book     *ledger.Book
	export   *export.Service
	logger   *slog.Logger
}

func NewHandler(sessions *Sessions, book *ledger.Book, exp *export.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if exp == nil {
		exp = export.NewService(book, logger)
	}
	return &Handler{sessions: sessions, book: book, export: exp, logger: logger}
}

type SessionResponse struct {
	SessionID uuid.UUID         `json:"session_id"`
	Snapshot  pipeline.Snapshot `json:"snapshot"`
}

type renameRequest struct {
	Name string `json:"name" binding:"required"`
}

type sealRequest struct {
	Attestation string `json:"attestation" binding:"required"`
}

type editRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// upload is one multipart document. Filename comes from the file part and decides the
// format; Name is the optional "name" form field shown on the entry.
type upload struct {
	Filename string
	Name     string
	Content  []byte
}

func readUpload(c *gin.Context) (upload, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return upload{}, common.InputErrorf("multipart field \"file\" is required")
	}
	if fh.Size > MaxUploadBytes {
		return upload{}, common.InputErrorf("file is larger than %d bytes", MaxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return upload{}, common.InputErrorf("open upload: %v", err)
	}
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		return upload{}, common.InputErrorf("read upload: %v", err)
	}
	return upload{
		Filename: fh.Filename,
		Name:     strings.TrimSpace(c.PostForm("name")),
		Content:  content,
	}, nil
}

func sessionID(c *gin.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	if err := common.ValidateAndReturnError(common.NewValidator().Field("session_id", raw, common.UUID)); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(raw), nil
}

// session resolves the :id orchestrator and tags the request context with it.
func (h *Handler) session(c *gin.Context) (uuid.UUID, *pipeline.Orchestrator, bool) {
	id, err := sessionID(c)
	if err != nil {
		_ = c.Error(err)
		return uuid.Nil, nil, false
	}
	o, err := h.sessions.Get(id)
	if err != nil {
		_ = c.Error(err)
		return uuid.Nil, nil, false
	}
	c.Request = c.Request.WithContext(common.WithSessionID(c.Request.Context(), id.String()))
	return id, o, true
}

func (h *Handler) respond(c *gin.Context, status int, id uuid.UUID, o *pipeline.Orchestrator) {
	c.JSON(status, SessionResponse{SessionID: id, Snapshot: o.Snapshot()})
}

// CreateSession uploads a document into a new session.
func (h *Handler) CreateSession(c *gin.Context) {
	up, err := readUpload(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	o := h.sessions.Open()
	snap := o.Upload(c.Request.Context(), up.Filename, up.Name, up.Content)
	id := h.sessions.Add(o)
	h.logger.Info("server.session.created", "session_id", id, "name", snap.Document.Name, "bytes", len(up.Content))
	h.respond(c, http.StatusCreated, id, o)
}

func (h *Handler) GetSession(c *gin.Context) {
	id, o, ok := h.session(c)
	if !ok {
		return
	}
	h.respond(c, http.StatusOK, id, o)
}

func (h *Handler) CloseSession(c *gin.Context) {
	id, err := sessionID(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.sessions.Close(id); err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("server.session.closed", "session_id", id)
	c.Status(http.StatusNoContent)
}

// ReplaceDocument uploads a new document into an existing session.
func (h *Handler) ReplaceDocument(c *gin.Context) {
	id, o, ok := h.session(c)
	if !ok {
		return
	}
	up, err := readUpload(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	o.Upload(c.Request.Context(), up.Filename, up.Name, up.Content)
	h.respond(c, http.StatusOK, id, o)
}

func (h *Handler) RenameDocument(c *gin.Context) {
	id, o, ok := h.session(c)
	if !ok {
		return
	}
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(common.InputErrorf("invalid body: %v", err))
		return
	}
	if err := o.Rename(c.Request.Context(), req.Name); err != nil {
		_ = c.Error(err)
		return
	}
	h.respond(c, http.StatusOK, id, o)
}

// step adapts an orchestrator operation with no request body into a handler.
func (h *Handler) step(run func(ctx context.Context, o *pipeline.Orchestrator) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, o, ok := h.session(c)
		if !ok {
			return
		}
		if err := run(c.Request.Context(), o); err != nil {
			_ = c.Error(err)
			return
		}
		h.respond(c, http.StatusOK, id, o)
	}
}

func (h *Handler) Extract() gin.HandlerFunc {
	return h.step(func(ctx context.Context, o *pipeline.Orchestrator) error {
		_, err := o.Extract(ctx)
		return err
	})
}

func (h *Handler) Parse() gin.HandlerFunc {
	return h.step(func(ctx context.Context, o *pipeline.Orchestrator) error {
		_, err := o.Parse(ctx)
		return err
	})
}

func (h *Handler) Score() gin.HandlerFunc {
	return h.step(func(ctx context.Context, o *pipeline.Orchestrator) error {
		_, err := o.Score(ctx)
		return err
	})
}

func (h *Handler) Approve() gin.HandlerFunc {
	return h.step(func(ctx context.Context, o *pipeline.Orchestrator) error { return o.Approve(ctx) })
}

func (h *Handler) Share() gin.HandlerFunc {
	return h.step(func(ctx context.Context, o *pipeline.Orchestrator) error { return o.Share(ctx) })
}

func (h *Handler) Correct() gin.HandlerFunc {
	return h.step(func(ctx context.Context, o *pipeline.Orchestrator) error { return o.Correct(ctx) })
}

func (h *Handler) DeleteEntry() gin.HandlerFunc {
	return h.step(func(ctx context.Context, o *pipeline.Orchestrator) error { return o.DeleteEntry(ctx) })
}

func (h *Handler) Seal(c *gin.Context) {
	id, o, ok := h.session(c)
	if !ok {
		return
	}
	var req sealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(common.InputErrorf("invalid body: %v", err))
		return
	}
	if err := o.Seal(c.Request.Context(), req.Attestation); err != nil {
		_ = c.Error(err)
		return
	}
	h.respond(c, http.StatusOK, id, o)
}

func (h *Handler) EditRecord(c *gin.Context) {
	id, o, ok := h.session(c)
	if !ok {
		return
	}
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(common.InputErrorf("invalid body: %v", err))
		return
	}
	if _, err := o.EditField(c.Request.Context(), req.Field, req.Value); err != nil {
		_ = c.Error(err)
		return
	}
	h.respond(c, http.StatusOK, id, o)
}

func (h *Handler) ListLedger(c *gin.Context) {
	entries, err := h.book.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// ExportLedger streams the recorded ledger as XLSX. Optional query: from, to (YYYY-MM-DD)
// and shared=true.
func (h *Handler) ExportLedger(c *gin.Context) {
	var filter export.Filter
	parseDate := func(key string) (*time.Time, error) {
		s := strings.TrimSpace(c.Query(key))
		if s == "" {
			return nil, nil
		}
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, common.InputErrorf("%s must be YYYY-MM-DD", key)
		}
		return &t, nil
	}
	var err error
	if filter.From, err = parseDate("from"); err != nil {
		_ = c.Error(err)
		return
	}
	if filter.To, err = parseDate("to"); err != nil {
		_ = c.Error(err)
		return
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		_ = c.Error(common.InputErrorf("to must not be before from"))
		return
	}
	if s := c.Query("shared"); s != "" {
		if filter.SharedOnly, err = strconv.ParseBool(s); err != nil {
			_ = c.Error(common.InputErrorf("shared must be a boolean"))
			return
		}
	}

	b, err := h.export.ExportLedgerXLSX(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	filename := fmt.Sprintf("ledger_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, b)
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.book.Ping(ctx); err != nil {
		h.logger.Warn("server.health.failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.sessions.Len()})
}
