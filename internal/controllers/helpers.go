package controllers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zaqqye/training_qr_backend/internal/attendance"
	"github.com/zaqqye/training_qr_backend/internal/database"
	"github.com/zaqqye/training_qr_backend/internal/programs"
	"github.com/zaqqye/training_qr_backend/internal/qrcode"
	"github.com/zaqqye/training_qr_backend/internal/schedule"
	"github.com/zaqqye/training_qr_backend/internal/targets"
)

// listQuery holds the shared pagination/sort query params: limit, page, all, sort_by, sort_dir, q.
type listQuery struct {
	All     bool
	Limit   int
	Page    int
	SortCol string
	SortDir string
	Q       string
}

func parseListQuery(c *gin.Context, defaultLimit int, allowedSorts map[string]string) listQuery {
	lq := listQuery{
		All:   strings.EqualFold(c.Query("all"), "true") || c.Query("all") == "1",
		Limit: defaultLimit,
		Page:  1,
		Q:     strings.TrimSpace(c.Query("q")),
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			lq.Limit = n
		}
	}
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			lq.Page = n
		}
	}
	lq.SortDir = strings.ToUpper(c.DefaultQuery("sort_dir", "DESC"))
	if lq.SortDir != "ASC" && lq.SortDir != "DESC" {
		lq.SortDir = "DESC"
	}
	col, ok := allowedSorts[strings.ToLower(c.DefaultQuery("sort_by", "created_at"))]
	if !ok {
		col = "created_at"
	}
	lq.SortCol = col
	return lq
}

func (lq listQuery) Order() string {
	return fmt.Sprintf("%s %s", lq.SortCol, lq.SortDir)
}

func (lq listQuery) Offset() int {
	return (lq.Page - 1) * lq.Limit
}

func (lq listQuery) Meta(total int64) gin.H {
	meta := gin.H{"total": total, "all": lq.All}
	if !lq.All {
		meta["limit"] = lq.Limit
		meta["page"] = lq.Page
		meta["sort_by"] = lq.SortCol
		meta["sort_dir"] = lq.SortDir
	}
	if lq.Q != "" {
		meta["q"] = lq.Q
	}
	return meta
}

// parseActive reads the optional ?active= filter.
func parseActive(c *gin.Context) (*bool, error) {
	switch strings.TrimSpace(strings.ToLower(c.Query("active"))) {
	case "":
		return nil, nil
	case "true", "1":
		v := true
		return &v, nil
	case "false", "0":
		v := false
		return &v, nil
	}
	return nil, errors.New("invalid active value")
}

func parseID(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || n == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(n), true
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, database.ErrDuplicate) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// respondError maps service and repository errors onto HTTP responses.
func respondError(c *gin.Context, err error) {
	var (
		invalid  *schedule.InvalidScheduleError
		rejected *programs.ToggleRejectedError
		denied   *attendance.DeniedError
		partial  *qrcode.PartialRenderError
		render   *qrcode.RenderError
	)
	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error(), "field": invalid.Field})
	case errors.Is(err, attendance.ErrInvalidRequest), errors.Is(err, targets.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &denied):
		c.JSON(http.StatusForbidden, denied.Decision)
	case errors.Is(err, attendance.ErrChecksumMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &rejected):
		c.JSON(http.StatusConflict, gin.H{"error": "Cannot toggle QR outside its validity window", "detail": rejected.Error()})
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, attendance.ErrNoActiveProgram), errors.Is(err, programs.ErrArtifactMissing):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case isUniqueViolation(err):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	case errors.Is(err, programs.ErrQRPending):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "qr_pending": true})
	case errors.As(err, &partial), errors.As(err, &render):
		log.Printf("qr render failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate QR codes"})
	default:
		log.Printf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
