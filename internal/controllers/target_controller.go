package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/training_qr_backend/internal/targets"
)

type TargetController struct {
	Targets *targets.Service
	Now     func() time.Time
}

func (tc *TargetController) year(c *gin.Context) (int, bool) {
	raw := c.Query("year")
	if raw == "" {
		return tc.Now().Year(), true
	}
	y, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
		return 0, false
	}
	return y, true
}

func (tc *TargetController) GetSheet(c *gin.Context) {
	year, ok := tc.year(c)
	if !ok {
		return
	}
	sheet, err := tc.Targets.Sheet(c.Request.Context(), year)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sheet)
}

func (tc *TargetController) UpdateSheet(c *gin.Context) {
	var req targets.BatchUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sheet, err := tc.Targets.Apply(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated", "sheet": sheet})
}

func (tc *TargetController) ListYears(c *gin.Context) {
	years, err := tc.Targets.Years(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": years})
}

type initYearRequest struct {
	Year       int `json:"year" binding:"required"`
	SourceYear int `json:"source_year"`
}

func (tc *TargetController) InitYear(c *gin.Context) {
	var req initYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	added, err := tc.Targets.InitYear(c.Request.Context(), req.Year, req.SourceYear)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "initialised", "year": req.Year, "added": added})
}

// SyncCatalogue adds missing TNI trainings to the ?year= plan.
func (tc *TargetController) SyncCatalogue(c *gin.Context) {
	year, ok := tc.year(c)
	if !ok {
		return
	}
	added, err := tc.Targets.SyncCatalogue(c.Request.Context(), year)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "synced", "year": year, "added": added})
}
