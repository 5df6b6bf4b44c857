package database

import (
	"log"

	"gorm.io/gorm"

	"github.com/zaqqye/training_qr_backend/internal/config"
	"github.com/zaqqye/training_qr_backend/internal/models"
	"github.com/zaqqye/training_qr_backend/internal/qrcode"
	"github.com/zaqqye/training_qr_backend/internal/utils"
)

func SeedAdmin(db *gorm.DB, cfg *config.Config) error {
	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", "admin").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	email := cfg.AdminEmail
	if email == "" {
		email = "admin@example.com"
	}
	fullName := cfg.AdminFullName
	if fullName == "" {
		fullName = "Administrator"
	}
	password := cfg.AdminPassword
	if password == "" {
		password = "admin123"
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	admin := models.User{
		UserID:   utils.NewUserID(),
		FullName: fullName,
		Email:    email,
		Password: hashed,
		Role:     "admin",
		Active:   true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	log.Println("Seeded initial admin:", email)
	return nil
}

// SeedHalls makes sure every configured location hall exists.
func SeedHalls(db *gorm.DB, names []string) error {
	created := 0
	for _, name := range names {
		slug := qrcode.SanitizeName(name)
		if slug == "" {
			continue
		}
		var count int64
		if err := db.Model(&models.Hall{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := db.Create(&models.Hall{Name: name, Slug: slug, Active: true}).Error; err != nil {
			return err
		}
		created++
	}
	if created > 0 {
		log.Printf("Seeded %d location halls", created)
	}
	return nil
}
