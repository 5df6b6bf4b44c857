package models

import (
	"time"
)

// User is a portal account. Roles: admin, coordinator, trainer.
type User struct {
	ID           uint      `gorm:"primaryKey"`
	UserID       string    `gorm:"uniqueIndex"`
	FullName     string
	Email        string    `gorm:"uniqueIndex"`
	Password     string
	Role         string    `gorm:"index"`
	EmployeeCode string    `gorm:"size:64"`
	Department   string    `gorm:"size:128"`
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
