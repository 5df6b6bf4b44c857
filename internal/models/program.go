package models

import "time"

// TrainingProgram is one scheduled session of a training, with its QR window.
type TrainingProgram struct {
	ID                  uint    `gorm:"primaryKey" json:"id"`
	TrainingID          uint    `gorm:"index" json:"training_id"`
	TrainingName        string  `gorm:"size:255;index" json:"training_name"`
	PMOTrainingCategory string  `gorm:"size:128" json:"pmo_training_category"`
	PLCategory          string  `gorm:"size:128" json:"pl_category"`
	BRSRCategory        string  `gorm:"column:brsr_sq_123_category;size:128" json:"brsr_sq_123_category"`
	LocationHall        string  `gorm:"size:128;index" json:"location_hall"`
	ProgramType         string  `gorm:"size:64" json:"program_type"`
	TNIStatus           string  `gorm:"column:tni_status;size:32" json:"tni_status"`
	Faculty1            string  `gorm:"column:faculty_1;size:128" json:"faculty_1"`
	Faculty2            string  `gorm:"column:faculty_2;size:128" json:"faculty_2"`
	Faculty3            string  `gorm:"column:faculty_3;size:128" json:"faculty_3"`
	Faculty4            string  `gorm:"column:faculty_4;size:128" json:"faculty_4"`
	LearningHours       float64 `json:"learning_hours"`

	StartDate    time.Time `gorm:"type:date;index" json:"start_date"`
	EndDate      time.Time `gorm:"type:date;index" json:"end_date"`
	StartTime    string    `gorm:"type:time" json:"start_time"`
	EndTime      string    `gorm:"type:time" json:"end_time"`
	DurationDays int       `gorm:"not null;check:duration_days BETWEEN 1 AND 3" json:"duration_days"`

	QRValidFrom time.Time `gorm:"not null" json:"qr_valid_from"`
	QRValidTo   time.Time `gorm:"not null" json:"qr_valid_to"`
	QRActive    bool      `gorm:"not null" json:"qr_active"`
	DailyWindow bool      `gorm:"not null" json:"daily_window"`

	QRCodePath         *string `gorm:"size:255" json:"qr_code_path"`
	FeedbackQRCodePath *string `gorm:"size:255" json:"feedback_qr_code_path"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QRPending reports whether the program still needs its QR codes (re)generated.
func (p TrainingProgram) QRPending() bool {
	return p.QRCodePath == nil || *p.QRCodePath == "" ||
		p.FeedbackQRCodePath == nil || *p.FeedbackQRCodePath == ""
}
