package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"throttle_platform/utils/logging"
	"throttle_platform/verification/advisory"
	"throttle_platform/verification/auth"
	"throttle_platform/verification/chat"
	"throttle_platform/verification/schema"
	"throttle_platform/verification/services"

	"github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

/**
 * ==========================================================================
 * ==== All variables used by the verification platform must be loaded   ====
 * ==== here. This is to make the data flow clear so that a user can see ====
 * ==== what variables are exposed, and how the values are propagated    ====
 * ==== through the system.                                              ====
 * ==========================================================================
 */
type platformEnv struct {
	DatabaseUri string `env:"DATABASE_URI,required"`
	ShareDir    string `env:"SHARE_DIR,required"`
	JwtSecret   string `env:"JWT_SECRET,required"`

	GatewayEndpoint string `env:"GATEWAY_ENDPOINT,required"`
	GatewayToken    string `env:"GATEWAY_TOKEN,required"`
	GatewayOrigin   string `env:"GATEWAY_ORIGIN"`

	GenAiKey string `env:"GENAI_KEY"`
}

func loadEnvFile(envFile string) {
	slog.Info(fmt.Sprintf("loading env from file %v", envFile))
	err := godotenv.Load(envFile)
	if err != nil {
		log.Fatalf("error loading .env file '%v': %v", envFile, err)
	}
}

func (e *platformEnv) postgresDsn() string {
	parts, err := url.Parse(e.DatabaseUri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func initLogging(logFile *os.File) {
	log.SetFlags(log.Lshortfile | log.Ltime | log.Ldate)
	log.SetOutput(io.MultiWriter(logFile, os.Stderr))

	handler := slog.NewJSONHandler(io.MultiWriter(logFile, os.Stderr), logging.GetVictoriaLogsOptions(false))
	slog.SetDefault(slog.New(handler))

	slog.Info("logging initialized", "log_file", logFile.Name(), "code", logging.SYSTEM)
}

func initDb(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	if err := schema.Migrations(db).Migrate(); err != nil {
		log.Fatalf("error migrating db schema: %v", err)
	}

	return db
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	port := flag.Int("port", 8000, "Port to run server on")

	flag.Parse()

	if *envFile != "" {
		loadEnvFile(*envFile)
	}

	var cfg platformEnv
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error loading env variables: %v", err)
	}

	err := os.MkdirAll(filepath.Join(cfg.ShareDir, "logs/"), 0777)
	if err != nil {
		log.Fatalf("error creating log dir: %v", err)
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.ShareDir, "logs/verification.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer logFile.Close()

	auditLog, err := os.OpenFile(filepath.Join(cfg.ShareDir, "logs/audit.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening audit log file: %v", err)
	}
	defer auditLog.Close()

	initLogging(logFile)

	db := initDb(cfg.postgresDsn())

	messenger := chat.NewRestClient(cfg.GatewayEndpoint, cfg.GatewayToken)

	var advisor advisory.Advisor
	if strings.HasPrefix(cfg.GenAiKey, "sk-") {
		advisor = advisory.NewOpenAIAdvisor(cfg.GenAiKey)
		slog.Info("advisory service enabled", "code", logging.SYSTEM)
	}

	platform := services.NewVerificationPlatform(
		db,
		messenger,
		advisor,
		auth.NewAuditLogger(auditLog),
		services.DefaultVariables(),
		[]byte(cfg.JwtSecret),
	)

	r := chi.NewRouter()

	allowedOrigins := []string{cfg.GatewayOrigin}
	if cfg.GatewayOrigin == "" {
		allowedOrigins = []string{cfg.GatewayEndpoint}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/api/v1", platform.Routes())
	r.Handle("/metrics", promhttp.Handler())

	slog.Info("starting server", "port", *port, "code", logging.SYSTEM)
	err = http.ListenAndServe(fmt.Sprintf(":%d", *port), r)
	if err != nil {
		log.Fatalf("listen and serve returned error: %v", err.Error())
	}
}
