package models

import (
	"time"

	"gorm.io/datatypes"
)

// Attendance is one trainee check-in for one program day.
type Attendance struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ProgramID    uint      `gorm:"uniqueIndex:uniq_attendance_day,priority:1;not null" json:"program_id"`
	EmployeeCode string    `gorm:"size:64;uniqueIndex:uniq_attendance_day,priority:2;not null" json:"employee_code"`
	Day          int       `gorm:"uniqueIndex:uniq_attendance_day,priority:3;not null" json:"day"`
	EmployeeName string    `gorm:"size:255" json:"employee_name"`
	Department   string    `gorm:"size:128" json:"department"`
	SubmittedAt  time.Time `gorm:"index" json:"submitted_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// FeedbackResponse is one trainee's survey for a program.
type FeedbackResponse struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	ProgramID       uint           `gorm:"uniqueIndex:uniq_feedback_employee,priority:1;not null" json:"program_id"`
	EmployeeCode    string         `gorm:"size:64;uniqueIndex:uniq_feedback_employee,priority:2;not null" json:"employee_code"`
	EmployeeName    string         `gorm:"size:255" json:"employee_name"`
	ContentRating   int            `json:"content_rating"`
	TrainerRating   int            `json:"trainer_rating"`
	RelevanceRating int            `json:"relevance_rating"`
	OverallRating   int            `json:"overall_rating"`
	Comments        string         `gorm:"type:text" json:"comments"`
	Answers         datatypes.JSON `gorm:"type:jsonb" json:"answers,omitempty"`
	SubmittedAt     time.Time      `gorm:"index" json:"submitted_at"`
	CreatedAt       time.Time      `json:"created_at"`
}

// TrainingTarget is the yearly plan row of one training.
type TrainingTarget struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TrainingName  string    `gorm:"size:255;uniqueIndex:uniq_target_year,priority:1" json:"training_name"`
	TargetYear    int       `gorm:"uniqueIndex:uniq_target_year,priority:2;index" json:"target_year"`
	PMOCategory   string    `gorm:"size:128" json:"pmo_category"`
	PLCategory    string    `gorm:"size:128" json:"pl_category"`
	Target        int       `json:"target"`
	BatchSize     int       `json:"batch_size"`
	YTDTarget     int       `gorm:"column:ytd_target" json:"ytd_target"`
	YTDActual     int       `gorm:"column:ytd_actual" json:"ytd_actual"`
	Balance       int       `json:"balance"`
	ProgramsToRun float64   `json:"programs_to_run"`
	UpdatedAt     time.Time `json:"updated_at"`
}
