package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/bazaar-digital2021/srijanMithilaBackend/internal/config"
	rzpgw "github.com/bazaar-digital2021/srijanMithilaBackend/internal/gateway/razorpay"
	apphttp "github.com/bazaar-digital2021/srijanMithilaBackend/internal/http"
)

func main() {
	// Load .env file (ignore error if not found - prod uses real env vars)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := gorm.Open(mysql.Open(cfg.DBDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	gw := rzpgw.New(cfg.Razorpay)

	r := apphttp.NewRouter(cfg, logger, db, gw)
	logger.Info("server starting", "addr", cfg.HTTPAddr, "env", cfg.Env)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
