package controllers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zaqqye/training_qr_backend/internal/models"
	"github.com/zaqqye/training_qr_backend/internal/utils"
)

type AdminController struct {
	DB *gorm.DB
}

type userImportError struct {
	Row   int    `json:"row"`
	Email string `json:"email,omitempty"`
	Error string `json:"error"`
}

func parseBoolDefaultTrue(val string) (bool, bool) {
	if val == "" {
		return true, false
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "y", "active":
		return true, true
	case "false", "0", "no", "n", "inactive":
		return false, true
	default:
		return true, false
	}
}

// ImportUsers bulk-creates portal accounts from a CSV upload.
// Header columns (case-insensitive): full_name, email, password, role,
// employee_code, department, active. The last four are optional.
func (a *AdminController) ImportUsers(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(10 << 20); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to parse form"})
		return
	}
	file, fileHeader, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(strings.TrimSpace(fileHeader.Filename)), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .csv files are allowed"})
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is empty"})
		return
	}

	data = bytes.ReplaceAll(data, []byte{'\r', '\n'}, []byte{'\n'})
	data = bytes.ReplaceAll(data, []byte{'\r'}, []byte{'\n'})
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	firstLine := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		firstLine = data[:i]
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	if bytes.Contains(firstLine, []byte{';'}) && !bytes.Contains(firstLine, []byte{','}) {
		reader.Comma = ';'
	}

	header, err := reader.Read()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read header"})
		return
	}
	headerIdx := make(map[string]int, len(header))
	for idx, col := range header {
		key := strings.ToLower(strings.Trim(strings.TrimSpace(col), "\"'"))
		if key != "" {
			headerIdx[key] = idx
		}
	}
	for _, key := range []string{"full_name", "email", "password"} {
		if _, ok := headerIdx[key]; !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("missing header column: %s", key)})
			return
		}
	}
	getVal := func(record []string, key string) string {
		idx, ok := headerIdx[key]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var (
		totalRows   int
		createdRows int
		failures    []userImportError
	)
	rowNum := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			failures = append(failures, userImportError{Row: rowNum, Error: fmt.Sprintf("failed to read row: %v", err)})
			continue
		}
		totalRows++

		email := strings.ToLower(getVal(row, "email"))
		fail := func(msg string) {
			failures = append(failures, userImportError{Row: rowNum, Email: email, Error: msg})
		}
		fullName := getVal(row, "full_name")
		password := getVal(row, "password")
		if fullName == "" || email == "" || password == "" {
			fail("full_name, email, and password are required")
			continue
		}
		role := strings.ToLower(getVal(row, "role"))
		if role == "" {
			role = RoleTrainer
		}
		if !IsValidRole(role) {
			fail("invalid role")
			continue
		}
		activeStr := getVal(row, "active")
		active, provided := parseBoolDefaultTrue(activeStr)
		if activeStr != "" && !provided {
			fail("invalid active value")
			continue
		}
		hashed, err := utils.HashPassword(password)
		if err != nil {
			fail(fmt.Sprintf("failed to hash password: %v", err))
			continue
		}

		user := models.User{
			UserID:       utils.NewUserID(),
			FullName:     fullName,
			Email:        email,
			Password:     hashed,
			Role:         role,
			EmployeeCode: getVal(row, "employee_code"),
			Department:   getVal(row, "department"),
			Active:       active,
		}
		if err := a.DB.Create(&user).Error; err != nil {
			if isUniqueViolation(err) {
				fail("email already exists")
			} else {
				fail(fmt.Sprintf("failed to insert user: %v", err))
			}
			continue
		}
		createdRows++
	}
	log.Printf("user import: %d of %d rows inserted", createdRows, totalRows)

	c.JSON(http.StatusOK, gin.H{
		"summary": gin.H{
			"total_rows": totalRows,
			"inserted":   createdRows,
			"failed":     len(failures),
		},
		"errors": failures,
	})
}

var userSorts = map[string]string{
	"id":            "id",
	"created_at":    "created_at",
	"full_name":     "full_name",
	"email":         "email",
	"role":          "role",
	"employee_code": "employee_code",
	"department":    "department",
	"active":        "active",
}

func (a *AdminController) ListUsers(c *gin.Context) {
	lq := parseListQuery(c, 50, userSorts)
	role := strings.TrimSpace(strings.ToLower(c.Query("role")))
	department := strings.TrimSpace(strings.ToLower(c.Query("department")))
	active, err := parseActive(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if role != "" && !IsValidRole(role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}

	filtered := func() *gorm.DB {
		q := a.DB.Model(&models.User{})
		if lq.Q != "" {
			like := "%" + lq.Q + "%"
			q = q.Where("full_name ILIKE ? OR email ILIKE ? OR employee_code ILIKE ?", like, like, like)
		}
		if role != "" {
			q = q.Where("role = ?", role)
		}
		if department != "" {
			q = q.Where("LOWER(department) = ?", department)
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
	var users []models.User
	if err := listQ.Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, userJSON(u))
	}
	meta := lq.Meta(total)
	if role != "" {
		meta["role"] = role
	}
	if department != "" {
		meta["department"] = department
	}
	if active != nil {
		meta["active"] = *active
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "meta": meta})
}

func (a *AdminController) findUser(c *gin.Context) (models.User, bool) {
	var u models.User
	if err := a.DB.Where("user_id = ?", strings.TrimSpace(c.Param("user_id"))).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return u, false
	}
	return u, true
}

func (a *AdminController) GetUser(c *gin.Context) {
	if u, ok := a.findUser(c); ok {
		c.JSON(http.StatusOK, userJSON(u))
	}
}

type createUserRequest struct {
	FullName     string          `json:"full_name" binding:"required"`
	Email        string          `json:"email" binding:"required,email"`
	Password     FlexibleString  `json:"password" binding:"required,min=6"`
	Role         string          `json:"role"`
	EmployeeCode *FlexibleString `json:"employee_code"`
	Department   string          `json:"department"`
	Active       *bool           `json:"active"`
}

func (a *AdminController) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = RoleTrainer
	}
	if !IsValidRole(role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}
	pw, err := utils.HashPassword(req.Password.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	user := models.User{
		UserID:       utils.NewUserID(),
		FullName:     req.FullName,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Password:     pw,
		Role:         role,
		EmployeeCode: req.EmployeeCode.Value(),
		Department:   req.Department,
		Active:       active,
	}
	if err := a.DB.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":   "registered",
		"user_id":   user.UserID,
		"email":     user.Email,
		"full_name": user.FullName,
		"role":      user.Role,
	})
}

type updateUserRequest struct {
	FullName     *string         `json:"full_name"`
	Email        *string         `json:"email"`
	Password     *FlexibleString `json:"password"`
	Role         *string         `json:"role"`
	EmployeeCode *FlexibleString `json:"employee_code"`
	Department   *string         `json:"department"`
	Active       *bool           `json:"active"`
}

func (a *AdminController) UpdateUser(c *gin.Context) {
	u, ok := a.findUser(c)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.FullName != nil {
		u.FullName = *req.FullName
	}
	if req.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Role != nil {
		if !IsValidRole(*req.Role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		u.Role = *req.Role
	}
	if req.EmployeeCode != nil {
		u.EmployeeCode = req.EmployeeCode.String()
	}
	if req.Department != nil {
		u.Department = *req.Department
	}
	if req.Active != nil {
		u.Active = *req.Active
	}
	if raw := strings.TrimSpace(req.Password.Value()); raw != "" {
		pw, err := utils.HashPassword(raw)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
			return
		}
		u.Password = pw
	}
	if err := a.DB.Save(&u).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

func (a *AdminController) DeleteUser(c *gin.Context) {
	u, ok := a.findUser(c)
	if !ok {
		return
	}
	err := a.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id_ref = ?", u.ID).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, u.ID).Error
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
