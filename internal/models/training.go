package models

import "time"

// Training is a catalogue entry that programs are scheduled from.
type Training struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:255;uniqueIndex" json:"name"`
	LearningHours float64   `json:"learning_hours"`
	PMOCategory   string    `gorm:"size:128" json:"pmo_category"`
	PLCategory    string    `gorm:"size:128" json:"pl_category"`
	BRSRCategory  string    `gorm:"column:brsr_sq_123_category;size:128" json:"brsr_sq_123_category"`
	TNIStatus     string    `gorm:"column:tni_status;size:32;index" json:"tni_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Hall is a physical training location with an optional location QR code.
type Hall struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;uniqueIndex" json:"name"`
	Slug      string    `gorm:"size:128;uniqueIndex" json:"slug"`
	Active    bool      `json:"active"`
	QRPath    *string   `gorm:"size:255" json:"qr_path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
