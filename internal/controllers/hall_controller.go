package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zaqqye/training_qr_backend/internal/models"
	"github.com/zaqqye/training_qr_backend/internal/qrcode"
)

// LocationCodes renders and stores hall location codes.
type LocationCodes interface {
	GenerateLocationCode(ctx context.Context, hallName, baseURL string) (qrcode.LocationCode, error)
	Remove(names ...string)
	Exists(name string) bool
	Path(name string) string
}

type HallController struct {
	DB      *gorm.DB
	Codes   LocationCodes
	BaseURL string
}

type createHallRequest struct {
	Name   string `json:"name" binding:"required"`
	Active *bool  `json:"active"`
}

type updateHallRequest struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
}

var hallSorts = map[string]string{
	"id":         "id",
	"created_at": "created_at",
	"name":       "name",
	"active":     "active",
}

func hallJSON(h models.Hall) gin.H {
	return gin.H{
		"id":         h.ID,
		"name":       h.Name,
		"slug":       h.Slug,
		"active":     h.Active,
		"checksum":   qrcode.Checksum(h.Name),
		"qr_path":    h.QRPath,
		"created_at": h.CreatedAt,
		"updated_at": h.UpdatedAt,
	}
}

func (hc *HallController) ListHalls(c *gin.Context) {
	lq := parseListQuery(c, 20, hallSorts)
	active, err := parseActive(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filtered := func() *gorm.DB {
		q := hc.DB.Model(&models.Hall{})
		if lq.Q != "" {
			q = q.Where("name ILIKE ?", "%"+lq.Q+"%")
		}
		if active != nil {
			q = q.Where("active = ?", *active)
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	listQ := filtered().Order(lq.Order())
	if !lq.All {
		listQ = listQ.Offset(lq.Offset()).Limit(lq.Limit)
	}
	var halls []models.Hall
	if err := listQ.Find(&halls).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(halls))
	for _, h := range halls {
		out = append(out, hallJSON(h))
	}
	meta := lq.Meta(total)
	if active != nil {
		meta["active"] = *active
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "meta": meta})
}

func (hc *HallController) CreateHall(c *gin.Context) {
	var req createHallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	slug := qrcode.SanitizeName(name)
	if slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hall name has no usable characters"})
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	hall := models.Hall{Name: name, Slug: slug, Active: active}
	if err := hc.DB.Create(&hall).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "hall name already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "created", "id": hall.ID, "slug": hall.Slug})
}

func (hc *HallController) findHall(c *gin.Context) (models.Hall, bool) {
	var h models.Hall
	id, ok := parseID(c, "id")
	if !ok {
		return h, false
	}
	if err := hc.DB.First(&h, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "hall not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return h, false
	}
	return h, true
}

func (hc *HallController) GetHall(c *gin.Context) {
	if h, ok := hc.findHall(c); ok {
		c.JSON(http.StatusOK, hallJSON(h))
	}
}

// UpdateHall renames or (de)activates a hall. A rename changes the slug, so
// the old location code no longer resolves and its image is dropped.
func (hc *HallController) UpdateHall(c *gin.Context) {
	h, ok := hc.findHall(c)
	if !ok {
		return
	}
	var req updateHallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var stale *string
	if req.Name != nil && strings.TrimSpace(*req.Name) != h.Name {
		name := strings.TrimSpace(*req.Name)
		slug := qrcode.SanitizeName(name)
		if slug == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hall name has no usable characters"})
			return
		}
		stale = h.QRPath
		h.Name, h.Slug, h.QRPath = name, slug, nil
	}
	if req.Active != nil {
		h.Active = *req.Active
	}
	if err := hc.DB.Save(&h).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "hall name already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if stale != nil {
		hc.Codes.Remove(*stale)
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

func (hc *HallController) DeleteHall(c *gin.Context) {
	h, ok := hc.findHall(c)
	if !ok {
		return
	}
	if err := hc.DB.Delete(&models.Hall{}, h.ID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.QRPath != nil {
		hc.Codes.Remove(*h.QRPath)
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// HallQR serves the hall's location code image, rendering it when missing
// or when ?regenerate=true.
func (hc *HallController) HallQR(c *gin.Context) {
	h, ok := hc.findHall(c)
	if !ok {
		return
	}
	if !h.Active {
		c.JSON(http.StatusConflict, gin.H{"error": "hall is inactive"})
		return
	}
	regenerate := strings.EqualFold(c.Query("regenerate"), "true") || c.Query("regenerate") == "1"
	if h.QRPath != nil && hc.Codes.Exists(*h.QRPath) && !regenerate {
		c.Header("X-Location-Checksum", strconv.Itoa(qrcode.Checksum(h.Name)))
		c.File(hc.Codes.Path(*h.QRPath))
		return
	}

	code, err := hc.Codes.GenerateLocationCode(c.Request.Context(), h.Name, hc.BaseURL)
	if err != nil {
		respondError(c, err)
		return
	}
	name := code.Artifact.Name
	if err := hc.DB.Model(&h).Update("qr_path", name).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.Printf("halls: location code for %s written to %s", h.Slug, name)
	c.Header("X-Location-Checksum", strconv.Itoa(code.Checksum))
	c.File(code.Artifact.Path)
}
