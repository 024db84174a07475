package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ozzaii/beatflow/internal/exchange"
	"github.com/ozzaii/beatflow/internal/filter"
	"github.com/ozzaii/beatflow/internal/logging"
	"github.com/ozzaii/beatflow/internal/timespec"
	"github.com/ozzaii/beatflow/pkg/patterns"
)

// maxBodyBytes bounds create and update request bodies.
const maxBodyBytes = 1 << 20

// Repository is the pattern lifecycle the HTTP API drives.
type Repository interface {
	Create(ctx context.Context, payload json.RawMessage, name, kit string) (*patterns.Pattern, error)
	CreateFromDraft(ctx context.Context, d *patterns.Draft) (*patterns.Pattern, error)
	List(ctx context.Context) (patterns.Collection, error)
	Get(ctx context.Context, id string) (*patterns.Pattern, error)
	Update(ctx context.Context, id string, patch patterns.Patch) (*patterns.Pattern, error)
	Remove(ctx context.Context, id string) error
}

// PatternHandler serves /api/patterns.
type PatternHandler struct {
	log  *logging.Logger
	repo Repository
	x    *exchange.Exchange
}

func NewPatternHandler(log *logging.Logger, repo Repository, x *exchange.Exchange) *PatternHandler {
	return &PatternHandler{log: log, repo: repo, x: x}
}

type createPatternRequest struct {
	Name    string          `json:"name"`
	Kit     string          `json:"kit"`
	Pattern json.RawMessage `json:"pattern"`
}

// GET /api/patterns?kit=&name=&since=&until=
func (h *PatternHandler) ListPatterns(c *gin.Context) {
	since, until, err := timespec.ParseRange(c.Query("since"), c.Query("until"), time.Now())
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_time_range", err)
		return
	}
	criteria := &filter.Criteria{
		Since:    since,
		Until:    until,
		KitGlob:  c.Query("kit"),
		NameGlob: c.Query("name"),
	}
	if err := criteria.Validate(); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_filter", err)
		return
	}

	coll, err := h.repo.List(c.Request.Context())
	if err != nil {
		respondPatternError(c, err)
		return
	}
	RespondOK(c, gin.H{"patterns": criteria.Apply(coll)})
}

// POST /api/patterns
func (h *PatternHandler) CreatePattern(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	var req createPatternRequest
	if err := json.Unmarshal(body, &req); err != nil {
		RespondError(c, http.StatusBadRequest, string(patterns.KindParse), err)
		return
	}

	p, err := h.repo.Create(c.Request.Context(), req.Pattern, req.Name, req.Kit)
	if err != nil {
		respondPatternError(c, err)
		return
	}
	if !patterns.IsKnownKit(p.Kit) {
		h.log.Info("pattern uses a kit outside the catalogue", "id", p.ID, "kit", p.Kit)
	}
	c.JSON(http.StatusCreated, p)
}

// GET /api/patterns/:id
func (h *PatternHandler) GetPattern(c *gin.Context) {
	p, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondPatternError(c, err)
		return
	}
	RespondOK(c, p)
}

// PATCH /api/patterns/:id
// id, created and modified in the body are ignored.
func (h *PatternHandler) UpdatePattern(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	patch, err := patterns.DecodePatch(body)
	if err != nil {
		RespondError(c, http.StatusBadRequest, string(patterns.KindParse), err)
		return
	}

	p, err := h.repo.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondPatternError(c, err)
		return
	}
	RespondOK(c, p)
}

// DELETE /api/patterns/:id
// Succeeds whether or not the id existed.
func (h *PatternHandler) DeletePattern(c *gin.Context) {
	if err := h.repo.Remove(c.Request.Context(), c.Param("id")); err != nil {
		respondPatternError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/patterns/:id/export
func (h *PatternHandler) ExportPattern(c *gin.Context) {
	p, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondPatternError(c, err)
		return
	}

	var data []byte
	sink := exchange.SinkFunc(func(_ context.Context, _ string, b []byte) (string, error) {
		data = b
		return "http", nil
	})
	a, err := h.x.Export(c.Request.Context(), p, sink)
	if err != nil {
		respondPatternError(c, err)
		return
	}
	c.Header("Content-Disposition", attachmentDisposition(exchange.SanitizeFilename(a.Name)))
	c.Data(http.StatusOK, exchange.ContentType, data)
}

// POST /api/patterns/import?save=true
// Without save the validated draft is echoed back and nothing is stored.
func (h *PatternHandler) ImportPattern(c *gin.Context) {
	save, _ := strconv.ParseBool(c.DefaultQuery("save", "false"))

	d, err := h.x.Import(c.Request.Context(), c.Request.Body)
	if err != nil {
		respondPatternError(c, err)
		return
	}
	if !save {
		RespondOK(c, d)
		return
	}

	p, err := h.repo.CreateFromDraft(c.Request.Context(), d)
	if err != nil {
		respondPatternError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// readBody reads a bounded request body, responding with an error when it cannot.
func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(c, http.StatusRequestEntityTooLarge, "body_too_large",
				fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		RespondError(c, http.StatusBadRequest, "unreadable_body", err)
		return nil, false
	}
	return body, true
}
