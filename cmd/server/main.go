package main

import (
	"flag"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"fines-service/internal/config"
	"fines-service/internal/db"
	"fines-service/internal/document"
	"fines-service/internal/erap"
	apphttp "fines-service/internal/http"
	"fines-service/internal/repository"
	"fines-service/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		log = log.Level(level)
	}

	conn, err := db.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	repo := repository.NewFineRepository(conn)
	fetcher := erap.NewClient(cfg.ERAP.FinesBaseURL, cfg.ERAP.Timeout, log)
	acquirer := document.NewAcquirer(cfg.ERAP.PDFBaseURL, cfg.Storage.DocumentDir, cfg.ERAP.Timeout, log)
	fineService := service.NewFineService(repo, fetcher, acquirer, cfg.ERAP.PageSize, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
	}))

	handler := apphttp.NewHandler(fineService, log)
	handler.Register(router, apphttp.JWTAuthMiddleware(cfg.Auth.JWTSecret, log))

	log.Info().Str("addr", cfg.Server.Addr).Str("driver", cfg.Database.Driver).Msg("starting fines service")
	if err := router.Run(cfg.Server.Addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
