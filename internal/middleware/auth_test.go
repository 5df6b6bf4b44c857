package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/zaqqye/training_qr_backend/internal/models"
)

func withUser(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if role != "" {
			c.Set("user", models.User{Role: role})
		}
		c.Next()
	}
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		role string
		want int
	}{
		{"coordinator", http.StatusOK},
		{"admin", http.StatusOK},
		{"trainer", http.StatusForbidden},
		{"", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		r := gin.New()
		r.GET("/x", withUser(tc.role), RequireRoles("coordinator"), func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, tc.want, w.Code, tc.role)
	}
}

func TestBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	read := func(header, query string, allowQuery bool) string {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/ws"+query, nil)
		if header != "" {
			c.Request.Header.Set("Authorization", header)
		}
		return bearerToken(c, allowQuery)
	}
	assert.Equal(t, "abc", read("Bearer abc", "", false))
	assert.Equal(t, "abc", read("bearer abc", "", false))
	assert.Equal(t, "", read("Basic abc", "", false))
	assert.Equal(t, "", read("", "?access_token=q", false))
	assert.Equal(t, "q", read("", "?access_token=q", true))
}
