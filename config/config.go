package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"8080"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// LLM-Provider-Konfiguration
	LLMProvider       string  `envconfig:"LLM_PROVIDER" default:"openai"`
	OpenAIBaseURL     string  `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIAPIKey      string  `envconfig:"OPENAI_API_KEY" required:"true"`
	OpenAIModel       string  `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAITemperature float64 `envconfig:"OPENAI_TEMPERATURE" default:"0.7"`
	OpenAITimeoutSec  int     `envconfig:"OPENAI_TIMEOUT_SECONDS" default:"120"`
	OpenAIMaxRetries  int     `envconfig:"OPENAI_MAX_RETRIES" default:"3"`

	// Empfehlungs-Verhalten: strict lehnt Antworten mit unbekannten Paper-IDs komplett ab,
	// best-effort (default) verwirft nur den betroffenen Eintrag.
	RecommendStrict   bool `envconfig:"RECOMMEND_STRICT" default:"false"`
	AbstractCharLimit int  `envconfig:"ABSTRACT_CHAR_LIMIT" default:"500"`

	// Nächtliche Vorab-Generierung der Wochenempfehlungen
	CronSchedule  string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`
	CurrentWeek   string `envconfig:"CURRENT_WEEK" default:"1"`
	PregenEnabled bool   `envconfig:"PREGEN_ENABLED" default:"false"`

	// Asset-Storage für Avatar-Bilder (S3-kompatibel)
	AssetS3Key    string `envconfig:"ASSET_S3_KEY" required:"true"`
	AssetS3Secret string `envconfig:"ASSET_S3_SECRET" required:"true"`
	AssetS3URL    string `envconfig:"ASSET_S3_URL" required:"true"`
	AssetS3Region string `envconfig:"ASSET_S3_REGION" required:"true"`
	AssetS3Bucket string `envconfig:"ASSET_S3_BUCKET" required:"true"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
