package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zaqqye/training_qr_backend/internal/models"
	"github.com/zaqqye/training_qr_backend/internal/schedule"
)

// TrainingController manages the training catalogue programs are scheduled from.
type TrainingController struct {
	DB *gorm.DB
}

type createTrainingRequest struct {
	Name          string  `json:"name" binding:"required"`
	LearningHours float64 `json:"learning_hours" binding:"gte=0"`
	PMOCategory   string  `json:"pmo_category"`
	PLCategory    string  `json:"pl_category"`
	BRSRCategory  string  `json:"brsr_sq_123_category"`
	TNIStatus     string  `json:"tni_status"`
}

type updateTrainingRequest struct {
	Name          *string  `json:"name"`
	LearningHours *float64 `json:"learning_hours"`
	PMOCategory   *string  `json:"pmo_category"`
	PLCategory    *string  `json:"pl_category"`
	BRSRCategory  *string  `json:"brsr_sq_123_category"`
	TNIStatus     *string  `json:"tni_status"`
}

var trainingSorts = map[string]string{
	"id":             "id",
	"created_at":     "created_at",
	"name":           "name",
	"learning_hours": "learning_hours",
	"pmo_category":   "pmo_category",
}

func trainingJSON(t models.Training) gin.H {
	days, _ := schedule.DurationDaysFromHours(t.LearningHours)
	return gin.H{
		"id":                   t.ID,
		"name":                 t.Name,
		"learning_hours":       t.LearningHours,
		"duration_days":        days,
		"pmo_category":         t.PMOCategory,
		"pl_category":          t.PLCategory,
		"brsr_sq_123_category": t.BRSRCategory,
		"tni_status":           t.TNIStatus,
		"created_at":           t.CreatedAt,
		"updated_at":           t.UpdatedAt,
	}
}

func (tc *TrainingController) ListTrainings(c *gin.Context) {
	lq := parseListQuery(c, 20, trainingSorts)
	category := strings.TrimSpace(c.Query("pmo_category"))

	filtered := func() *gorm.DB {
		q := tc.DB.Model(&models.Training{})
		if lq.Q != "" {
			like := "%" + lq.Q + "%"
			q = q.Where("name ILIKE ? OR pmo_category ILIKE ?", like, like)
		}
		if category != "" {
			q = q.Where("pmo_category = ?", category)
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
	var trainings []models.Training
	if err := listQ.Find(&trainings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(trainings))
	for _, t := range trainings {
		out = append(out, trainingJSON(t))
	}
	meta := lq.Meta(total)
	if category != "" {
		meta["pmo_category"] = category
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "meta": meta})
}

func (tc *TrainingController) CreateTraining(c *gin.Context) {
	var req createTrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := schedule.DurationDaysFromHours(req.LearningHours); err != nil {
		respondError(c, err)
		return
	}
	t := models.Training{
		Name:          strings.TrimSpace(req.Name),
		LearningHours: req.LearningHours,
		PMOCategory:   req.PMOCategory,
		PLCategory:    req.PLCategory,
		BRSRCategory:  req.BRSRCategory,
		TNIStatus:     req.TNIStatus,
	}
	if err := tc.DB.Create(&t).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "training name already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "created", "id": t.ID})
}

func (tc *TrainingController) findTraining(c *gin.Context) (models.Training, bool) {
	var t models.Training
	id, ok := parseID(c, "id")
	if !ok {
		return t, false
	}
	if err := tc.DB.First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "training not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return t, false
	}
	return t, true
}

func (tc *TrainingController) GetTraining(c *gin.Context) {
	if t, ok := tc.findTraining(c); ok {
		c.JSON(http.StatusOK, trainingJSON(t))
	}
}

// UpdateTraining edits the catalogue entry. Programs already scheduled keep
// the hours and window they were created with.
func (tc *TrainingController) UpdateTraining(c *gin.Context) {
	t, ok := tc.findTraining(c)
	if !ok {
		return
	}
	var req updateTrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name != nil {
		t.Name = strings.TrimSpace(*req.Name)
	}
	if req.LearningHours != nil {
		if _, err := schedule.DurationDaysFromHours(*req.LearningHours); err != nil {
			respondError(c, err)
			return
		}
		t.LearningHours = *req.LearningHours
	}
	if req.PMOCategory != nil {
		t.PMOCategory = *req.PMOCategory
	}
	if req.PLCategory != nil {
		t.PLCategory = *req.PLCategory
	}
	if req.BRSRCategory != nil {
		t.BRSRCategory = *req.BRSRCategory
	}
	if req.TNIStatus != nil {
		t.TNIStatus = *req.TNIStatus
	}
	if err := tc.DB.Save(&t).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "training name already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

func (tc *TrainingController) DeleteTraining(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var scheduled int64
	if err := tc.DB.Model(&models.TrainingProgram{}).Where("training_id = ?", id).Count(&scheduled).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if scheduled > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "training has scheduled programs"})
		return
	}
	res := tc.DB.Delete(&models.Training{}, id)
	if res.Error != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "training not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
