package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/zaqqye/training_qr_backend/internal/middleware"
	"github.com/zaqqye/training_qr_backend/internal/models"
	"github.com/zaqqye/training_qr_backend/internal/utils"
)

const tokenIssuer = "training_qr_backend"

type AuthController struct {
	DB            *gorm.DB
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (a *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := a.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !user.Active || !utils.CheckPassword(user.Password, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	access, refresh, err := a.issueTokens(a.DB, user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":       access.Token,
		"token_type":         "Bearer",
		"expires_in":         int(a.AccessTTL.Seconds()),
		"role":               user.Role,
		"refresh_token":      refresh.Token,
		"refresh_expires_in": int(a.RefreshTTL.Seconds()),
	})
}

func (a *AuthController) Me(c *gin.Context) {
	user := c.MustGet("user").(models.User)
	c.JSON(http.StatusOK, userJSON(user))
}

type tokenPair struct {
	Token string
	JTI   string
}

func (a *AuthController) issueTokens(db *gorm.DB, user models.User) (access tokenPair, refresh tokenPair, err error) {
	now := time.Now().UTC()
	sub := strconv.FormatUint(uint64(user.ID), 10)
	acl := middleware.Claims{
		UserID: user.UserID,
		Role:   user.Role,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.AccessTTL)),
			Subject:   sub,
		},
	}
	atStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, acl).SignedString([]byte(a.AccessSecret))
	if err != nil {
		return
	}
	access = tokenPair{Token: atStr}

	jti := utils.NewTokenID()
	rcl := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.RefreshTTL)),
		Subject:   sub,
		ID:        jti,
	}
	rtStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, rcl).SignedString([]byte(a.RefreshSecret))
	if err != nil {
		return
	}
	refresh = tokenPair{Token: rtStr, JTI: jti}

	// only the hash of the refresh token is stored
	rec := models.RefreshToken{
		TokenID:   jti,
		UserIDRef: user.ID,
		TokenHash: utils.SHA256Hex(rtStr),
		ExpiresAt: now.Add(a.RefreshTTL),
	}
	err = db.Create(&rec).Error
	return
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (a *AuthController) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tok, err := jwt.ParseWithClaims(req.RefreshToken, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(a.RefreshSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	var (
		access, next tokenPair
		status       = http.StatusOK
		failure      string
	)
	err = a.DB.Transaction(func(tx *gorm.DB) error {
		var rec models.RefreshToken
		if err := tx.Where("token_hash = ?", utils.SHA256Hex(req.RefreshToken)).First(&rec).Error; err != nil {
			status, failure = http.StatusUnauthorized, "refresh token not found"
			return err
		}
		now := time.Now().UTC()
		if rec.RevokedAt != nil || now.After(rec.ExpiresAt) {
			status, failure = http.StatusUnauthorized, "refresh token expired or revoked"
			return gorm.ErrInvalidData
		}
		var user models.User
		if err := tx.Where("id = ? AND active = ?", rec.UserIDRef, true).First(&user).Error; err != nil {
			status, failure = http.StatusUnauthorized, "user not found or inactive"
			return err
		}
		var err error
		if access, next, err = a.issueTokens(tx, user); err != nil {
			status, failure = http.StatusInternalServerError, err.Error()
			return err
		}
		// rotate: the presented token cannot be used again
		return tx.Model(&rec).Updates(map[string]interface{}{
			"revoked_at":           &now,
			"replaced_by_token_id": next.JTI,
		}).Error
	})
	if err != nil {
		if failure == "" {
			status, failure = http.StatusInternalServerError, err.Error()
		}
		c.JSON(status, gin.H{"error": failure})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":       access.Token,
		"token_type":         "Bearer",
		"expires_in":         int(a.AccessTTL.Seconds()),
		"refresh_token":      next.Token,
		"refresh_expires_in": int(a.RefreshTTL.Seconds()),
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
	All          bool   `json:"all"`
}

// Logout revokes one refresh token or all of the caller's. Access tokens stay valid until expiry.
func (a *AuthController) Logout(c *gin.Context) {
	var req logoutRequest
	_ = c.ShouldBindJSON(&req)
	now := time.Now().UTC()
	if req.RefreshToken != "" {
		a.DB.Model(&models.RefreshToken{}).
			Where("token_hash = ? AND revoked_at IS NULL", utils.SHA256Hex(req.RefreshToken)).
			Update("revoked_at", &now)
	}
	if req.All {
		if uVal, ok := c.Get("user"); ok {
			user := uVal.(models.User)
			a.DB.Model(&models.RefreshToken{}).
				Where("user_id_ref = ? AND revoked_at IS NULL", user.ID).
				Update("revoked_at", &now)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func userJSON(u models.User) gin.H {
	return gin.H{
		"id":            u.ID,
		"user_id":       u.UserID,
		"full_name":     u.FullName,
		"email":         u.Email,
		"role":          u.Role,
		"employee_code": u.EmployeeCode,
		"department":    u.Department,
		"active":        u.Active,
		"created_at":    u.CreatedAt,
		"updated_at":    u.UpdatedAt,
	}
}
