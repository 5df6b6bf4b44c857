package routes

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zaqqye/training_qr_backend/internal/attendance"
	"github.com/zaqqye/training_qr_backend/internal/config"
	"github.com/zaqqye/training_qr_backend/internal/controllers"
	"github.com/zaqqye/training_qr_backend/internal/middleware"
	"github.com/zaqqye/training_qr_backend/internal/programs"
	"github.com/zaqqye/training_qr_backend/internal/targets"
	"github.com/zaqqye/training_qr_backend/internal/ws"
)

// Services are the domain services the HTTP layer is wired to.
type Services struct {
	Programs   *programs.Service
	Attendance *attendance.Service
	Targets    *targets.Service
	Codes      controllers.LocationCodes
	Hub        *ws.AttendanceHub
}

func durationFrom(raw string, unit, fallback time.Duration) time.Duration {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * unit
}

func Register(r *gin.Engine, db *gorm.DB, cfg *config.Config, svc Services) {
	authCtrl := &controllers.AuthController{
		DB:            db,
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.RefreshJWTSecret,
		AccessTTL:     durationFrom(cfg.AccessTokenTTLMinutes, time.Minute, 15*time.Minute),
		RefreshTTL:    durationFrom(cfg.RefreshTokenTTLDays, 24*time.Hour, 30*24*time.Hour),
	}
	adminCtrl := &controllers.AdminController{DB: db}
	trainingCtrl := &controllers.TrainingController{DB: db}
	hallCtrl := &controllers.HallController{DB: db, Codes: svc.Codes, BaseURL: cfg.PublicBaseURL}
	programCtrl := &controllers.ProgramController{Programs: svc.Programs, Attendance: svc.Attendance}
	attendanceCtrl := &controllers.AttendanceController{Attendance: svc.Attendance, Location: svc.Programs.Location()}
	targetCtrl := &controllers.TargetController{Targets: svc.Targets, Now: svc.Programs.Now}

	// Public
	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/login", authCtrl.Login)
		auth.POST("/refresh", authCtrl.Refresh)
	}

	// Scanned QR codes land here
	r.GET("/attendance/:id", attendanceCtrl.AttendanceStatus)
	r.POST("/attendance/:id", attendanceCtrl.SubmitAttendance)
	r.GET("/attendance/hall/:slug", attendanceCtrl.ResolveHall)
	r.GET("/feedback/form/:id", attendanceCtrl.FeedbackStatus)
	r.POST("/feedback/form/:id", attendanceCtrl.SubmitFeedback)

	// Protected
	authMW := middleware.AuthMiddleware(db, middleware.AuthConfig{JWTSecret: cfg.JWTSecret})
	api := r.Group("/api/v1", authMW)
	{
		api.GET("/auth/me", authCtrl.Me)
		api.POST("/auth/logout", authCtrl.Logout)

		admin := api.Group("/admin", middleware.RequireRoles(controllers.RoleAdmin))
		{
			admin.GET("/users", adminCtrl.ListUsers)
			admin.POST("/users", adminCtrl.CreateUser)
			admin.POST("/users/import", adminCtrl.ImportUsers)
			admin.GET("/users/:user_id", adminCtrl.GetUser)
			admin.PUT("/users/:user_id", adminCtrl.UpdateUser)
			admin.DELETE("/users/:user_id", adminCtrl.DeleteUser)
		}

		// Coordinators run the catalogue, halls, programs and plan
		coord := api.Group("", middleware.RequireRoles(controllers.RoleCoordinator))
		{
			coord.GET("/trainings", trainingCtrl.ListTrainings)
			coord.POST("/trainings", trainingCtrl.CreateTraining)
			coord.GET("/trainings/:id", trainingCtrl.GetTraining)
			coord.PUT("/trainings/:id", trainingCtrl.UpdateTraining)
			coord.DELETE("/trainings/:id", trainingCtrl.DeleteTraining)

			coord.GET("/halls", hallCtrl.ListHalls)
			coord.POST("/halls", hallCtrl.CreateHall)
			coord.GET("/halls/:id", hallCtrl.GetHall)
			coord.PUT("/halls/:id", hallCtrl.UpdateHall)
			coord.DELETE("/halls/:id", hallCtrl.DeleteHall)
			coord.GET("/halls/:id/qr", hallCtrl.HallQR)

			coord.POST("/programs", programCtrl.CreateProgram)
			coord.DELETE("/programs/:id", programCtrl.DeleteProgram)
			coord.POST("/programs/:id/toggle_qr", programCtrl.ToggleQR)
			coord.POST("/programs/:id/regenerate_qr", programCtrl.RegenerateQR)

			coord.GET("/targets", targetCtrl.GetSheet)
			coord.PUT("/targets", targetCtrl.UpdateSheet)
			coord.GET("/targets/years", targetCtrl.ListYears)
			coord.POST("/targets/years", targetCtrl.InitYear)
			coord.POST("/targets/sync", targetCtrl.SyncCatalogue)
		}

		// Trainers may look up programs and print their codes
		staff := api.Group("", middleware.RequireRoles(controllers.RoleCoordinator, controllers.RoleTrainer))
		{
			staff.GET("/programs", programCtrl.ListPrograms)
			staff.GET("/programs/:id", programCtrl.GetProgram)
			staff.GET("/programs/:id/qrcode", programCtrl.QRCode)
			staff.GET("/programs/:id/poster", programCtrl.Poster)
			staff.GET("/programs/:id/attendance", programCtrl.Roster)
		}
	}

	// Browsers cannot set headers on websocket upgrades
	wsAuth := middleware.AuthMiddleware(db, middleware.AuthConfig{JWTSecret: cfg.JWTSecret, AllowQueryToken: true})
	r.GET("/api/v1/ws/attendance", wsAuth,
		middleware.RequireRoles(controllers.RoleCoordinator, controllers.RoleTrainer),
		ws.AttendanceHandler(svc.Hub))
}
