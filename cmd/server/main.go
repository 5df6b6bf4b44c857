package main

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zaqqye/training_qr_backend/internal/attendance"
	"github.com/zaqqye/training_qr_backend/internal/config"
	"github.com/zaqqye/training_qr_backend/internal/database"
	"github.com/zaqqye/training_qr_backend/internal/programs"
	"github.com/zaqqye/training_qr_backend/internal/qrcode"
	"github.com/zaqqye/training_qr_backend/internal/routes"
	"github.com/zaqqye/training_qr_backend/internal/targets"
	"github.com/zaqqye/training_qr_backend/internal/ws"
)

// setupLogging fans log and gin output out to stdout and a rotating file.
// It returns nil when file logging is off.
func setupLogging(cfg *config.Config) *lumberjack.Logger {
	if cfg.LogDir == "" {
		return nil
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		log.Printf("log dir %s unavailable, logging to stdout only: %v", cfg.LogDir, err)
		return nil
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "server.log"),
		MaxSize:    cfg.LogMaxSizeMB,
		MaxAge:     cfg.LogMaxAgeDays,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   cfg.LogCompress,
	}
	sink := io.MultiWriter(os.Stdout, rotator)
	log.SetOutput(sink)
	gin.DefaultWriter = sink
	gin.DefaultErrorWriter = sink
	return rotator
}

func main() {
	// Load .env (non-fatal if missing in production)
	_ = godotenv.Load()

	cfg := config.Load()
	if rotator := setupLogging(cfg); rotator != nil {
		defer rotator.Close()
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("timezone: %v", err)
	}
	buffer, err := cfg.QRBuffer()
	if err != nil {
		log.Fatalf("qr buffer: %v", err)
	}
	policy, err := programs.ParsePartialPolicy(cfg.QRPartialPolicy)
	if err != nil {
		log.Fatalf("qr partial policy: %v", err)
	}
	styles, err := config.LoadQRStyles(cfg.QRStyleFile)
	if err != nil {
		log.Fatalf("qr styles: %v", err)
	}
	gen, err := qrcode.NewGenerator(qrcode.Options{
		Folder:  cfg.QRFolder,
		Timeout: cfg.QRRenderTimeout,
		Styles:  styles,
	})
	if err != nil {
		log.Fatalf("qr generator: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}
	if err := database.SeedAdmin(db, cfg); err != nil {
		log.Fatalf("admin seed failed: %v", err)
	}
	if err := database.SeedHalls(db, cfg.SeedHalls); err != nil {
		log.Fatalf("hall seed failed: %v", err)
	}

	hub := ws.NewAttendanceHub()
	go hub.Run()
	defer hub.Stop()

	repo := database.NewRepository(db)
	svc := routes.Services{
		Programs: programs.NewService(repo, gen, programs.Options{
			Buffer:        buffer,
			Location:      loc,
			BaseURL:       cfg.PublicBaseURL,
			PartialPolicy: policy,
			DailyWindow:   cfg.QRDailyWindow,
		}),
		Attendance: attendance.NewService(repo, hub, attendance.Options{Location: loc}),
		Targets:    targets.NewService(repo, nil),
		Codes:      gen,
		Hub:        hub,
	}

	r := gin.Default()
	routes.Register(r, db, cfg, svc)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	log.Printf("serving on :%s (qr folder %s, timezone %s)", port, gen.Folder(), loc)
	if err := r.Run(":" + port); err != nil {
		log.Println("server exited with error:", err)
		os.Exit(1)
	}
}
