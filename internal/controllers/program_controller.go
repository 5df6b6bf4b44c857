package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/training_qr_backend/internal/attendance"
	"github.com/zaqqye/training_qr_backend/internal/database"
	"github.com/zaqqye/training_qr_backend/internal/models"
	"github.com/zaqqye/training_qr_backend/internal/programs"
	"github.com/zaqqye/training_qr_backend/internal/qrcode"
	"github.com/zaqqye/training_qr_backend/internal/schedule"
)

const dateLayout = "2006-01-02"

type ProgramController struct {
	Programs   *programs.Service
	Attendance *attendance.Service
}

type createProgramRequest struct {
	TrainingID   uint     `json:"training_id" binding:"required"`
	LocationHall string   `json:"location_hall" binding:"required"`
	ProgramType  string   `json:"program_type"`
	StartDate    string   `json:"start_date" binding:"required"`
	StartTime    string   `json:"start_time" binding:"required"`
	EndTime      string   `json:"end_time" binding:"required"`
	Faculty      []string `json:"faculty" binding:"max=4"`
	DailyWindow  *bool    `json:"daily_window"`
}

func programJSON(p models.TrainingProgram, loc *time.Location) gin.H {
	return gin.H{
		"id":                    p.ID,
		"training_id":           p.TrainingID,
		"training_name":         p.TrainingName,
		"pmo_training_category": p.PMOTrainingCategory,
		"pl_category":           p.PLCategory,
		"brsr_sq_123_category":  p.BRSRCategory,
		"tni_status":            p.TNIStatus,
		"location_hall":         p.LocationHall,
		"program_type":          p.ProgramType,
		"faculty":               faculty(p),
		"learning_hours":        p.LearningHours,
		"start_date":            p.StartDate.Format(dateLayout),
		"end_date":              p.EndDate.Format(dateLayout),
		"start_time":            p.StartTime,
		"end_time":              p.EndTime,
		"duration_days":         p.DurationDays,
		"qr_valid_from":         p.QRValidFrom.In(loc),
		"qr_valid_to":           p.QRValidTo.In(loc),
		"qr_active":             p.QRActive,
		"daily_window":          p.DailyWindow,
		"qr_pending":            p.QRPending(),
		"qr_code_path":          p.QRCodePath,
		"feedback_qr_code_path": p.FeedbackQRCodePath,
		"created_at":            p.CreatedAt,
		"updated_at":            p.UpdatedAt,
	}
}

func faculty(p models.TrainingProgram) []string {
	out := make([]string, 0, 4)
	for _, f := range []string{p.Faculty1, p.Faculty2, p.Faculty3, p.Faculty4} {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// respondPending reports a program that exists but is missing at least one QR code.
func (pc *ProgramController) respondPending(c *gin.Context, status int, p models.TrainingProgram, err error) {
	c.JSON(status, gin.H{
		"error":      "program saved but QR generation incomplete; use regenerate_qr",
		"detail":     err.Error(),
		"qr_pending": p.QRPending(),
		"program":    programJSON(p, pc.Programs.Location()),
	})
}

func (pc *ProgramController) CreateProgram(c *gin.Context) {
	var req createProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := time.ParseInLocation(dateLayout, strings.TrimSpace(req.StartDate), pc.Programs.Location())
	if err != nil {
		respondError(c, &schedule.InvalidScheduleError{Field: "start_date", Reason: "expected YYYY-MM-DD", Err: err})
		return
	}
	res, err := pc.Programs.Schedule(c.Request.Context(), programs.ScheduleRequest{
		TrainingID:   req.TrainingID,
		LocationHall: req.LocationHall,
		ProgramType:  req.ProgramType,
		StartDate:    start,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Faculty:      req.Faculty,
		DailyWindow:  req.DailyWindow,
	})
	if err != nil {
		if errors.Is(err, programs.ErrQRPending) && res.Program.ID != 0 {
			pc.respondPending(c, http.StatusBadGateway, res.Program, err)
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "created",
		"program": programJSON(res.Program, pc.Programs.Location()),
	})
}

func (pc *ProgramController) ListPrograms(c *gin.Context) {
	f := database.ProgramFilter{
		Location: strings.TrimSpace(c.Query("location")),
		Status:   strings.ToLower(strings.TrimSpace(c.Query("status"))),
		Search:   strings.TrimSpace(c.Query("q")),
	}
	if f.Status != "" && f.Status != "scheduled" && f.Status != "completed" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be scheduled or completed"})
		return
	}
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Page = n
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.PerPage = n
		}
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PerPage == 0 {
		f.PerPage = 10
	}

	list, total, err := pc.Programs.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, p := range list {
		out = append(out, programJSON(p, pc.Programs.Location()))
	}
	meta := gin.H{"total": total, "page": f.Page, "limit": f.PerPage}
	if f.Location != "" {
		meta["location"] = f.Location
	}
	if f.Status != "" {
		meta["status"] = f.Status
	}
	if f.Search != "" {
		meta["q"] = f.Search
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "meta": meta})
}

func (pc *ProgramController) GetProgram(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := pc.Programs.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, programJSON(p, pc.Programs.Location()))
}

func (pc *ProgramController) DeleteProgram(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := pc.Programs.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (pc *ProgramController) ToggleQR(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := pc.Programs.Toggle(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	state := "deactivated"
	if p.QRActive {
		state = "activated"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   fmt.Sprintf("QR code %s", state),
		"qr_active": p.QRActive,
	})
}

func (pc *ProgramController) RegenerateQR(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := pc.Programs.Regenerate(c.Request.Context(), id)
	if err != nil {
		var partial *qrcode.PartialRenderError
		if p.ID != 0 && (errors.Is(err, programs.ErrQRPending) || errors.As(err, &partial)) {
			pc.respondPending(c, http.StatusBadGateway, p, err)
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "regenerated",
		"program": programJSON(p, pc.Programs.Location()),
	})
}

// QRCode serves one of the program's QR images; ?type= is attendance (default) or feedback.
func (pc *ProgramController) QRCode(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	kind, err := qrcode.ParseKind(c.DefaultQuery("type", string(qrcode.KindAttendance)))
	if err != nil || kind == qrcode.KindHall {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be attendance or feedback"})
		return
	}
	path, err := pc.Programs.ArtifactFile(c.Request.Context(), id, kind)
	if err != nil {
		respondError(c, err)
		return
	}
	if strings.EqualFold(c.Query("download"), "true") {
		c.FileAttachment(path, qrcode.ArtifactName(kind, id))
		return
	}
	c.File(path)
}

func (pc *ProgramController) Poster(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	pdf, err := pc.Programs.Poster(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="program_%d_poster.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// Roster lists the attendance of a program grouped by day.
func (pc *ProgramController) Roster(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	rows, err := pc.Attendance.Roster(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	perDay := map[int]int{}
	for _, r := range rows {
		perDay[r.Day]++
	}
	c.JSON(http.StatusOK, gin.H{
		"data": rows,
		"meta": gin.H{"total": len(rows), "per_day": perDay},
	})
}
