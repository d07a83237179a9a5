package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Model presets offered to the operator.
const (
	ModelPresetPro   = "pro"
	ModelPresetFlash = "flash"

	ModelPro   = "publishers/google/models/gemini-3-pro-image-preview"
	ModelFlash = "gemini-2.5-flash-image"

	// ModelProGemini is the pro model as served by the Gemini API.
	ModelProGemini = "gemini-3-pro-image-preview"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Server
	Port   string
	AppEnv string

	// Gemini / Vertex AI
	GeminiAPIKey          string
	GoogleCloudProject    string
	GoogleCloudLocation   string
	VertexCredentialsJSON string
	VertexCredentialsPath string
	ModelPreset           string
	GeminiTimeout         time.Duration

	// Image normalization
	MaxImageWidth  int
	MaxImageHeight int
	JPEGQuality    int

	// Retry
	MaxRetries  int
	BackoffStep time.Duration

	// Filesystem
	AssetsDir  string
	ResultsDir string

	// Thumbnails
	ThumbnailWidth    int
	ThumbnailCacheTTL time.Duration

	// Redis (job queue, optional)
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool
	JobTTL        time.Duration
}

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("⚠️  .env file not found, using environment variables")
	}

	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "production"),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "global"),
		VertexCredentialsJSON: getEnv("VERTEXAI_CREDENTIALS_JSON", ""),
		VertexCredentialsPath: getEnv("VERTEXAI_CREDENTIALS_PATH", ""),
		ModelPreset:           strings.ToLower(getEnv("GEMINI_MODEL_PRESET", ModelPresetPro)),
		GeminiTimeout:         getEnvDuration("GEMINI_TIMEOUT", 0),

		MaxImageWidth:  getEnvInt("MAX_IMAGE_WIDTH", 3000),
		MaxImageHeight: getEnvInt("MAX_IMAGE_HEIGHT", 3000),
		JPEGQuality:    getEnvInt("JPEG_QUALITY", 95),

		MaxRetries:  getEnvInt("MAX_RETRIES", 3),
		BackoffStep: getEnvDuration("BACKOFF_STEP", 2*time.Second),

		AssetsDir:  getEnv("ASSETS_DIR", "."),
		ResultsDir: getEnv("RESULTS_DIR", "results"),

		ThumbnailWidth:    getEnvInt("THUMBNAIL_WIDTH", 300),
		ThumbnailCacheTTL: getEnvDuration("THUMBNAIL_CACHE_TTL", 0),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   getEnvBool("REDIS_USE_TLS", false),
		JobTTL:        getEnvDuration("JOB_TTL", time.Hour),
	}

	// 필수 환경변수 검증
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Info().Msg("✅ Configuration loaded successfully")
	log.Info().
		Str("model", cfg.Model()).
		Bool("vertex", cfg.UseVertex()).
		Int("max_width", cfg.MaxImageWidth).
		Int("max_height", cfg.MaxImageHeight).
		Int("jpeg_quality", cfg.JPEGQuality).
		Int("max_retries", cfg.MaxRetries).
		Dur("backoff_step", cfg.BackoffStep).
		Str("results_dir", cfg.ResultsDir).
		Bool("redis", cfg.RedisEnabled()).
		Msg("   Settings")

	return cfg, nil
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if c.GeminiAPIKey == "" && c.GoogleCloudProject == "" {
		return fmt.Errorf("GEMINI_API_KEY or GOOGLE_CLOUD_PROJECT is required")
	}
	if _, err := ModelForPreset(c.ModelPreset); err != nil {
		return err
	}
	if c.MaxImageWidth <= 0 || c.MaxImageHeight <= 0 {
		return fmt.Errorf("MAX_IMAGE_WIDTH and MAX_IMAGE_HEIGHT must be positive")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be between 1 and 100, got %d", c.JPEGQuality)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be at least 1, got %d", c.MaxRetries)
	}
	if c.BackoffStep < 0 {
		return fmt.Errorf("BACKOFF_STEP must not be negative")
	}
	if c.ResultsDir == "" {
		return fmt.Errorf("RESULTS_DIR is required")
	}
	if c.ThumbnailWidth <= 0 {
		return fmt.Errorf("THUMBNAIL_WIDTH must be positive")
	}
	return nil
}

// Model - 설정된 preset의 모델 ID
func (c *Config) Model() string {
	model, _ := c.ModelFor(c.ModelPreset)
	return model
}

// UseVertex reports whether requests go through Vertex AI instead of the Gemini API.
func (c *Config) UseVertex() bool {
	return c.GoogleCloudProject != ""
}

// RedisEnabled - Redis job queue 사용 여부
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// ModelFor resolves a preset for the configured backend. The publisher path
// of the pro model only exists on Vertex AI.
func (c *Config) ModelFor(preset string) (string, error) {
	model, err := ModelForPreset(preset)
	if err != nil {
		return "", err
	}
	if model == ModelPro && !c.UseVertex() {
		return ModelProGemini, nil
	}
	return model, nil
}

// Presets - preset별 모델 ID (현재 backend 기준)
func (c *Config) Presets() map[string]string {
	pro, _ := c.ModelFor(ModelPresetPro)
	flash, _ := c.ModelFor(ModelPresetFlash)
	return map[string]string{
		ModelPresetPro:   pro,
		ModelPresetFlash: flash,
	}
}

// ModelForPreset maps a preset name ("pro", "flash") to a model identifier.
// An empty name selects the pro preset.
func ModelForPreset(preset string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(preset)) {
	case "", ModelPresetPro:
		return ModelPro, nil
	case ModelPresetFlash:
		return ModelFlash, nil
	default:
		return "", fmt.Errorf("unknown model preset %q (want %q or %q)", preset, ModelPresetPro, ModelPresetFlash)
	}
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", value).Msg("⚠️  invalid integer, using default")
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Warn().Str("key", key).Str("value", value).Msg("⚠️  invalid duration, using default")
	}
	return defaultValue
}
