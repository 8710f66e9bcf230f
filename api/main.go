package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/harlequingg/devfocus/internal/ai"
)

const version = "1.0.0"

type config struct {
	port        int
	env         string
	storage     string
	logRequests bool
	location    *time.Location
	db          struct {
		dsn                string
		maxOpenConnections int
		maxIdleConnections int
		maxIdleTime        time.Duration
		migrate            bool
	}
	smtp struct {
		host     string
		port     int
		username string
		password string
		sender   string
	}
	jwt struct {
		secret string
		ttl    time.Duration
	}
	limiter struct {
		enabled bool
		rps     float64
		burst   int
	}
	cors struct {
		trustedOrigins []string
	}
	ai ai.Config
}

type application struct {
	config  config
	storage storage
	mailer  otpSender
	ai      aiService
	now     func() time.Time
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("loading .env: %v", err)
	}

	var cfg config
	flag.IntVar(&cfg.port, "port", getenvInt("PORT", 4000), "Server port")
	flag.StringVar(&cfg.env, "env", getenv("ENV", "development"), "Environment [development|production]")
	flag.StringVar(&cfg.storage, "storage", getenv("STORAGE", "postgres"), "Storage backend [postgres|memory]")
	flag.BoolVar(&cfg.logRequests, "log-requests", true, "Log every request")
	timezone := flag.String("timezone", getenv("TIMEZONE", "UTC"), "IANA time zone used for calendar days")

	flag.StringVar(&cfg.db.dsn, "db-dsn", os.Getenv("DB_DSN"), "PostgreSQL DSN")
	flag.IntVar(&cfg.db.maxOpenConnections, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.IntVar(&cfg.db.maxIdleConnections, "db-max-idle-conns", 25, "PostgreSQL max idle connections")
	flag.DurationVar(&cfg.db.maxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max connection idle time")
	flag.BoolVar(&cfg.db.migrate, "db-migrate", false, "Apply the schema on startup")

	flag.StringVar(&cfg.smtp.host, "smtp-host", os.Getenv("SMTP_HOST"), "SMTP host")
	flag.IntVar(&cfg.smtp.port, "smtp-port", getenvInt("SMTP_PORT", 587), "SMTP port")
	flag.StringVar(&cfg.smtp.username, "smtp-username", os.Getenv("SMTP_USERNAME"), "SMTP username")
	flag.StringVar(&cfg.smtp.password, "smtp-password", os.Getenv("SMTP_PASSWORD"), "SMTP password")
	flag.StringVar(&cfg.smtp.sender, "smtp-sender", getenv("SMTP_SENDER", "DevFocus <no-reply@devfocus.local>"), "SMTP sender")

	flag.StringVar(&cfg.jwt.secret, "jwt-secret", os.Getenv("JWT_SECRET"), "JWT secret")
	flag.DurationVar(&cfg.jwt.ttl, "jwt-ttl", 7*24*time.Hour, "JWT lifetime")

	flag.BoolVar(&cfg.limiter.enabled, "limiter-enabled", true, "Enable rate limiter")
	flag.Float64Var(&cfg.limiter.rps, "limiter-rps", 4, "Rate limiter maximum requests per second")
	flag.IntVar(&cfg.limiter.burst, "limiter-burst", 8, "Rate limiter maximum burst")

	flag.Func("cors-trusted-origins", "Trusted CORS origins (space separated)", func(val string) error {
		cfg.cors.trustedOrigins = strings.Fields(val)
		return nil
	})

	flag.StringVar(&cfg.ai.APIKey, "ai-api-key", os.Getenv("GROQ_API_KEY"), "AI provider API key")
	flag.StringVar(&cfg.ai.BaseURL, "ai-base-url", getenv("AI_BASE_URL", ai.DefaultBaseURL), "AI chat completions endpoint")
	flag.StringVar(&cfg.ai.Model, "ai-model", getenv("AI_MODEL", ai.DefaultModel), "AI model")
	flag.Parse()

	if cfg.cors.trustedOrigins == nil {
		cfg.cors.trustedOrigins = strings.Fields(os.Getenv("CORS_TRUSTED_ORIGINS"))
	}

	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		log.Fatalf("invalid timezone %q: %v", *timezone, err)
	}
	cfg.location = loc

	if cfg.jwt.secret == "" {
		if cfg.env == "production" {
			log.Fatal("a JWT secret is required in production")
		}
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			log.Fatal(err)
		}
		cfg.jwt.secret = hex.EncodeToString(secret)
		log.Println("no JWT secret configured, using a random one; tokens will not survive a restart")
	}

	app := &application{
		config: cfg,
		ai:     ai.New(cfg.ai),
		now:    time.Now,
	}

	switch cfg.storage {
	case "memory":
		app.storage = newMemoryStorage(time.Now)
		log.Println("using in-memory storage")
	case "postgres":
		db, err := openDB(cfg)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
		log.Println("established a connection with database")
		if cfg.db.migrate {
			if err := migrate(db); err != nil {
				log.Fatal(err)
			}
			log.Println("database schema is up to date")
		}
		app.storage = newPostgresStorage(db)
	default:
		log.Fatalf("unknown storage %q", cfg.storage)
	}

	if cfg.smtp.host == "" {
		if cfg.env == "production" {
			log.Fatal("an SMTP host is required in production")
		}
		app.mailer = logMailer{logf: log.Printf}
		log.Println("no SMTP host configured, verification codes will be logged")
	} else {
		m, err := newMailer(cfg.smtp.host, cfg.smtp.port, cfg.smtp.username, cfg.smtp.password, cfg.smtp.sender)
		if err != nil {
			log.Fatal(err)
		}
		app.mailer = m
	}

	if err := app.serve(); err != nil {
		log.Fatal(err)
	}
}

// serve runs the HTTP server until SIGINT or SIGTERM, then drains in-flight
// requests for up to 30 seconds.
func (app *application) serve() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.config.port),
		Handler:      composeRoutes(app),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		ErrorLog:     log.Default(),
	}

	shutdownErr := make(chan error, 1)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit
		log.Printf("caught signal %s, shutting down", s)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		shutdownErr <- srv.Shutdown(ctx)
	}()

	log.Printf("starting %s server on port %d", app.config.env, app.config.port)
	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-shutdownErr; err != nil {
		return err
	}
	log.Println("stopped server")
	return nil
}
