package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string `validate:"required"`
	DatabaseURL string `validate:"required"`
	JWTSecret   string `validate:"required"`
	LogLevel    string `validate:"oneof=debug info warn error"`

	GoogleClientID      string
	GoogleClientSecret  string
	GoogleProjectID     string
	GooglePubSubTopic   string
	GoogleCredentials   string
	FirebaseCredentials string

	// Classifier service
	MLServiceURL     string        `validate:"required,url"`
	MLModelVersion   string
	MLTimeout        time.Duration `validate:"gt=0"`
	EnableClassifier bool

	// LLM extraction
	EnableLLM              bool
	LLMConfidenceThreshold float64 `validate:"gte=0,lte=1"`
	AIProvider             string  `validate:"oneof=ollama gemini auto"`
	OllamaBaseURL          string
	OllamaModel            string
	GeminiAPIKey           string
	GeminiModel            string
	LLMTimeout             time.Duration `validate:"gt=0"`

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SyncInterval        time.Duration `validate:"gt=0"`
	SyncWindowDays      int           `validate:"gt=0"`
	SyncMaxResults      int           `validate:"gt=0"`
	LightSyncWindowDays int           `validate:"gt=0"`
	LightSyncMaxResults int           `validate:"gt=0"`
	GmailRateLimit      float64       `validate:"gt=0"`
	GmailTimeout        time.Duration `validate:"gt=0"`

	HeuristicRulesPath string
	CredentialsKey     string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("GOOGLE_PUBSUB_TOPIC", "gmail-updates")

	v.SetDefault("ML_SERVICE_URL", "http://localhost:8000")
	v.SetDefault("ML_MODEL_VERSION", "logreg-v1")
	v.SetDefault("ML_TIMEOUT", "10s")
	v.SetDefault("ENABLE_CLASSIFIER", true)

	v.SetDefault("ENABLE_LLM", false)
	v.SetDefault("LLM_CONFIDENCE_THRESHOLD", 0.75)
	v.SetDefault("AI_PROVIDER", "ollama")
	v.SetDefault("OLLAMA_URL", "http://127.0.0.1:11434")
	v.SetDefault("OLLAMA_MODEL", "llama3.1:8b")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("LLM_TIMEOUT", "60s")

	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SYNC_INTERVAL", "15m")
	v.SetDefault("SYNC_WINDOW_DAYS", 50)
	v.SetDefault("SYNC_MAX_RESULTS", 1000)
	v.SetDefault("LIGHT_SYNC_WINDOW_DAYS", 7)
	v.SetDefault("LIGHT_SYNC_MAX_RESULTS", 30)
	v.SetDefault("GMAIL_RATE_LIMIT", 10.0)
	v.SetDefault("GMAIL_TIMEOUT", "30s")
}

// Load reads .env (if present), the environment and any flags already bound
// to v, then validates the result.
func Load(v *viper.Viper) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	if v == nil {
		v = viper.New()
	}
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Port:                v.GetString("PORT"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		LogLevel:            strings.ToLower(v.GetString("LOG_LEVEL")),
		GoogleClientID:      v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:  v.GetString("GOOGLE_CLIENT_SECRET"),
		GoogleProjectID:     v.GetString("GOOGLE_PROJECT_ID"),
		GooglePubSubTopic:   v.GetString("GOOGLE_PUBSUB_TOPIC"),
		GoogleCredentials:   v.GetString("GOOGLE_CREDENTIALS"),
		FirebaseCredentials: v.GetString("FIREBASE_CREDENTIALS"),

		MLServiceURL:     strings.TrimRight(v.GetString("ML_SERVICE_URL"), "/"),
		MLModelVersion:   v.GetString("ML_MODEL_VERSION"),
		MLTimeout:        v.GetDuration("ML_TIMEOUT"),
		EnableClassifier: v.GetBool("ENABLE_CLASSIFIER"),

		EnableLLM:              v.GetBool("ENABLE_LLM"),
		LLMConfidenceThreshold: v.GetFloat64("LLM_CONFIDENCE_THRESHOLD"),
		AIProvider:             strings.ToLower(v.GetString("AI_PROVIDER")),
		OllamaBaseURL:          strings.TrimRight(v.GetString("OLLAMA_URL"), "/"),
		OllamaModel:            v.GetString("OLLAMA_MODEL"),
		GeminiAPIKey:           v.GetString("GEMINI_API_KEY"),
		GeminiModel:            v.GetString("GEMINI_MODEL"),
		LLMTimeout:             v.GetDuration("LLM_TIMEOUT"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		SyncInterval:        v.GetDuration("SYNC_INTERVAL"),
		SyncWindowDays:      v.GetInt("SYNC_WINDOW_DAYS"),
		SyncMaxResults:      v.GetInt("SYNC_MAX_RESULTS"),
		LightSyncWindowDays: v.GetInt("LIGHT_SYNC_WINDOW_DAYS"),
		LightSyncMaxResults: v.GetInt("LIGHT_SYNC_MAX_RESULTS"),
		GmailRateLimit:      v.GetFloat64("GMAIL_RATE_LIMIT"),
		GmailTimeout:        v.GetDuration("GMAIL_TIMEOUT"),

		HeuristicRulesPath: v.GetString("HEURISTIC_RULES_PATH"),
		CredentialsKey:     v.GetString("CREDENTIALS_KEY"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// PubSubTopicName returns the short topic name when a full resource name
// (projects/<p>/topics/<t>) is configured.
func (c *Config) PubSubTopicName() string {
	topic := c.GooglePubSubTopic
	if parts := strings.Split(topic, "/"); len(parts) > 1 {
		topic = parts[len(parts)-1]
	}
	if topic == "" {
		topic = "gmail-updates"
	}
	return topic
}

// PubSubTopicPath returns the fully-qualified topic used for Gmail watch requests.
func (c *Config) PubSubTopicPath() string {
	if strings.HasPrefix(c.GooglePubSubTopic, "projects/") {
		return c.GooglePubSubTopic
	}
	return fmt.Sprintf("projects/%s/topics/%s", c.GoogleProjectID, c.PubSubTopicName())
}
