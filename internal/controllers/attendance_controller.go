package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/training_qr_backend/internal/attendance"
	"github.com/zaqqye/training_qr_backend/internal/models"
	"github.com/zaqqye/training_qr_backend/internal/schedule"
)

// AttendanceController serves the public pages scanned QR codes resolve to.
type AttendanceController struct {
	Attendance *attendance.Service
	Location   *time.Location
}

func (ac *AttendanceController) sessionJSON(p models.TrainingProgram, d schedule.Decision) gin.H {
	return gin.H{
		"program": gin.H{
			"id":            p.ID,
			"training_name": p.TrainingName,
			"location_hall": p.LocationHall,
			"start_date":    p.StartDate.Format(dateLayout),
			"end_date":      p.EndDate.Format(dateLayout),
			"start_time":    p.StartTime,
			"end_time":      p.EndTime,
			"duration_days": p.DurationDays,
			"qr_valid_from": p.QRValidFrom.In(ac.Location),
			"qr_valid_to":   p.QRValidTo.In(ac.Location),
		},
		"decision": d,
	}
}

func decisionStatus(d schedule.Decision) int {
	if d.Admitted() {
		return http.StatusOK
	}
	return http.StatusForbidden
}

// AttendanceStatus reports whether the attendance form is open right now.
func (ac *AttendanceController) AttendanceStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, d, err := ac.Attendance.Check(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(decisionStatus(d), ac.sessionJSON(p, d))
}

func (ac *AttendanceController) SubmitAttendance(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req attendance.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := ac.Attendance.Submit(c.Request.Context(), id, req)
	if err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "attendance already recorded for this day"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "attendance recorded",
		"day":     rec.Day,
		"data":    rec,
	})
}

// ResolveHall turns a scanned location code into the program running in
// the hall now. ?cs= is the checksum printed into the code.
func (ac *AttendanceController) ResolveHall(c *gin.Context) {
	var checksum *int
	if raw := strings.TrimSpace(c.Query("cs")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cs"})
			return
		}
		checksum = &n
	}
	res, err := ac.Attendance.ResolveHall(c.Request.Context(), c.Param("slug"), checksum)
	if err != nil {
		respondError(c, err)
		return
	}
	body := ac.sessionJSON(res.Program, res.Decision)
	body["hall"] = gin.H{"name": res.Hall.Name, "slug": res.Hall.Slug}
	body["attendance_path"] = "/attendance/" + strconv.FormatUint(uint64(res.Program.ID), 10)
	c.JSON(decisionStatus(res.Decision), body)
}

// FeedbackStatus reports whether the feedback form of a program is open.
func (ac *AttendanceController) FeedbackStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, d, err := ac.Attendance.CheckFeedback(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(decisionStatus(d), ac.sessionJSON(p, d))
}

func (ac *AttendanceController) SubmitFeedback(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req attendance.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := ac.Attendance.SubmitFeedback(c.Request.Context(), id, req)
	if err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "feedback already submitted"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "thank you for your feedback", "id": rec.ID})
}
