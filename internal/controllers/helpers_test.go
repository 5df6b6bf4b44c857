package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaqqye/training_qr_backend/internal/attendance"
	"github.com/zaqqye/training_qr_backend/internal/database"
	"github.com/zaqqye/training_qr_backend/internal/programs"
	"github.com/zaqqye/training_qr_backend/internal/qrcode"
	"github.com/zaqqye/training_qr_backend/internal/schedule"
)

func TestRespondErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		want int
	}{
		{&schedule.InvalidScheduleError{Field: "start_time"}, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", attendance.ErrInvalidRequest), http.StatusBadRequest},
		{&attendance.DeniedError{Decision: schedule.Decision{Status: schedule.StatusEnded}}, http.StatusForbidden},
		{&programs.ToggleRejectedError{ProgramID: 1, Now: time.Now()}, http.StatusConflict},
		{fmt.Errorf("program 3: %w", database.ErrNotFound), http.StatusNotFound},
		{database.ErrDuplicate, http.StatusConflict},
		{&pgconn.PgError{Code: "23505"}, http.StatusConflict},
		{fmt.Errorf("p: %w", programs.ErrQRPending), http.StatusConflict},
		{&qrcode.RenderError{Kind: qrcode.KindAttendance, Err: errors.New("boom")}, http.StatusInternalServerError},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondError(c, tc.err)
		assert.Equal(t, tc.want, w.Code, tc.err.Error())
	}
}

func TestRespondErrorCarriesDecision(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, &attendance.DeniedError{Decision: schedule.Decision{Status: schedule.StatusDeactivated, Message: "disabled by administrator"}})
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "deactivated", body["status"])
	assert.Equal(t, "disabled by administrator", body["message"])
}

func TestFlexibleString(t *testing.T) {
	var payload struct {
		Code FlexibleString  `json:"code"`
		Opt  *FlexibleString `json:"opt"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"code": 10045}`), &payload))
	assert.Equal(t, "10045", payload.Code.String())
	assert.Equal(t, "", payload.Opt.Value())

	require.NoError(t, json.Unmarshal([]byte(`{"code": " E-7 ", "opt": "x"}`), &payload))
	assert.Equal(t, "E-7", payload.Code.String())
	assert.Equal(t, "x", payload.Opt.Value())

	assert.Error(t, json.Unmarshal([]byte(`{"code": true}`), &payload))
}
