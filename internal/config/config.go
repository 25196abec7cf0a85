package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Resolver strategies selectable at startup. Exactly one is active per
// deployment.
const (
	StrategyLive           = "live"
	StrategyExactLookup    = "exact_lookup"
	StrategyCategoryRandom = "category_random"
)

// Fetch modes for the live strategy.
const (
	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"
)

// CAPTCHA challenge variants on the court site.
const (
	CaptchaModeCode  = "code"
	CaptchaModeImage = "image"
)

// Solvers for image challenges.
const (
	SolverVision = "vision"
	SolverManual = "manual"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Host string
	Port string

	// Database settings
	DatabasePath string

	// Logging settings
	LogLevel  string
	LogFormat string

	// Resolver settings
	ResolverStrategy  string
	LookupSeedPath    string
	ResolveMinLatency time.Duration

	// Court settings
	CourtBaseURL string
	CourtName    string

	// Live-fetch settings
	FetchMode       string
	FetchTimeout    time.Duration
	PDFFetchTimeout time.Duration

	// CAPTCHA settings
	CaptchaMode        string
	CaptchaSolver      string
	CaptchaMaxAttempts int
	ChallengeTTL       time.Duration
	GeminiAPIKey       string
	GeminiModel        string

	// Browser settings
	HeadlessMode bool
	UserAgent    string
	BrowserPath  string

	// Concurrency settings
	MaxConcurrentSearches int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not an error if .env doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Host:             getEnv("HOST", "0.0.0.0"),
		Port:             getEnv("PORT", "8080"),
		DatabasePath:     getEnv("DATABASE_PATH", "./data/courtlens.db"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		ResolverStrategy: getEnv("RESOLVER_STRATEGY", StrategyExactLookup),
		LookupSeedPath:   getEnv("LOOKUP_SEED_PATH", ""),
		CourtBaseURL:     getEnv("COURT_BASE_URL", "https://delhihighcourt.nic.in"),
		CourtName:        getEnv("COURT_NAME", "Delhi High Court"),
		FetchMode:        getEnv("COURT_FETCH_MODE", FetchModeHTTP),
		CaptchaMode:      getEnv("CAPTCHA_MODE", CaptchaModeCode),
		CaptchaSolver:    getEnv("CAPTCHA_SOLVER", SolverVision),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		UserAgent:        getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
		BrowserPath:      getEnv("ROD_BROWSER_PATH", ""),
	}

	switch cfg.ResolverStrategy {
	case StrategyLive, StrategyExactLookup, StrategyCategoryRandom:
	default:
		return nil, fmt.Errorf("invalid RESOLVER_STRATEGY: %q", cfg.ResolverStrategy)
	}

	switch cfg.FetchMode {
	case FetchModeHTTP, FetchModeBrowser:
	default:
		return nil, fmt.Errorf("invalid COURT_FETCH_MODE: %q", cfg.FetchMode)
	}

	switch cfg.CaptchaMode {
	case CaptchaModeCode, CaptchaModeImage:
	default:
		return nil, fmt.Errorf("invalid CAPTCHA_MODE: %q", cfg.CaptchaMode)
	}

	switch cfg.CaptchaSolver {
	case SolverVision, SolverManual:
	default:
		return nil, fmt.Errorf("invalid CAPTCHA_SOLVER: %q", cfg.CaptchaSolver)
	}

	// Parse integer and duration values
	var err error
	cfg.ResolveMinLatency, err = getDuration("RESOLVE_MIN_LATENCY", 0)
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := strconv.Atoi(getEnv("FETCH_TIMEOUT", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_TIMEOUT: %w", err)
	}
	cfg.FetchTimeout = time.Duration(fetchTimeout) * time.Second

	pdfTimeout, err := strconv.Atoi(getEnv("PDF_FETCH_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid PDF_FETCH_TIMEOUT: %w", err)
	}
	cfg.PDFFetchTimeout = time.Duration(pdfTimeout) * time.Second

	cfg.CaptchaMaxAttempts, err = strconv.Atoi(getEnv("CAPTCHA_MAX_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid CAPTCHA_MAX_ATTEMPTS: %w", err)
	}
	if cfg.CaptchaMaxAttempts < 1 {
		return nil, fmt.Errorf("CAPTCHA_MAX_ATTEMPTS must be at least 1")
	}

	challengeTTL, err := strconv.Atoi(getEnv("CHALLENGE_TTL", "180"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHALLENGE_TTL: %w", err)
	}
	cfg.ChallengeTTL = time.Duration(challengeTTL) * time.Second

	cfg.MaxConcurrentSearches, err = strconv.Atoi(getEnv("MAX_CONCURRENT_SEARCHES", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_CONCURRENT_SEARCHES: %w", err)
	}
	if cfg.MaxConcurrentSearches < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_SEARCHES must be at least 1")
	}

	cfg.HeadlessMode = getEnv("HEADLESS_MODE", "true") == "true"

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration parses an environment variable in Go duration syntax
// (e.g. "500ms", "2s").
func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}
