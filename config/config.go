package config

import (
	"net"
	"net/url"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultEnvFile is read when present; it mirrors the process environment keys
const DefaultEnvFile = ".env"

// Config holds all application-level configuration
type Config struct {
	// Database
	DB DBConfig

	// Files
	RawDataPath       string // local directory or s3://bucket/prefix
	ProcessedDataPath string
	ModelPath         string

	// Ingestion
	TableName string
	BatchSize int // rows per COPY round trip

	// Misc
	AWSRegion      string
	PushgatewayURL string
	LogLevel       string
}

// DBConfig holds the Postgres connection settings
type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	SSLMode  string
}

var defaults = map[string]interface{}{
	"DB_USER":             "postgres",
	"DB_PASSWORD":         "",
	"DB_HOST":             "localhost",
	"DB_PORT":             "5432",
	"DB_NAME":             "NYC_Taxi",
	"DB_SSLMODE":          "disable",
	"RAW_DATA_PATH":       "data/raw",
	"PROCESSED_DATA_PATH": "data/processed",
	"MODEL_PATH":          "model/green_taxi_tip_prediction_model.gob",
	"TABLE_NAME":          "green_tripdata",
	"INGEST_BATCH_SIZE":   10000,
	"AWS_REGION":          "us-east-1",
	"PUSHGATEWAY_URL":     "",
	"LOG_LEVEL":           "info",
}

// flagKeys maps command-line flag names onto configuration keys
var flagKeys = map[string]string{
	"log-level":      "LOG_LEVEL",
	"raw-path":       "RAW_DATA_PATH",
	"processed-path": "PROCESSED_DATA_PATH",
	"model-path":     "MODEL_PATH",
	"batch-size":     "INGEST_BATCH_SIZE",
}

// Load resolves configuration from defaults, an optional .env file, the process
// environment and command-line flags, in increasing priority.
// flags may be nil; a "config" flag, when present, names the .env file.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	envFile, explicit := DefaultEnvFile, false
	if flags != nil {
		if f := flags.Lookup("config"); f != nil {
			envFile, explicit = f.Value.String(), f.Changed
		}
	}
	if err := readEnvFile(v, envFile, explicit); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "binding flag %s", name)
				}
			}
		}
	}

	cfg := &Config{
		DB: DBConfig{
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		RawDataPath:       v.GetString("RAW_DATA_PATH"),
		ProcessedDataPath: v.GetString("PROCESSED_DATA_PATH"),
		ModelPath:         v.GetString("MODEL_PATH"),
		TableName:         v.GetString("TABLE_NAME"),
		BatchSize:         v.GetInt("INGEST_BATCH_SIZE"),
		AWSRegion:         v.GetString("AWS_REGION"),
		PushgatewayURL:    v.GetString("PUSHGATEWAY_URL"),
		LogLevel:          v.GetString("LOG_LEVEL"),
	}
	if cfg.BatchSize <= 0 {
		return nil, errors.Errorf("INGEST_BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}
	if cfg.TableName == "" {
		return nil, errors.New("TABLE_NAME must not be empty")
	}
	return cfg, nil
}

func readEnvFile(v *viper.Viper, path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return errors.Wrapf(err, "reading configuration file '%s'", path)
	}
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "reading configuration file '%s'", path)
	}
	return nil
}

// DatabaseURL builds the lib/pq connection string
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.DB.Host, c.DB.Port),
		Path:     "/" + c.DB.Name,
		RawQuery: url.Values{"sslmode": []string{c.DB.SSLMode}}.Encode(),
	}
	if c.DB.Password != "" {
		u.User = url.UserPassword(c.DB.User, c.DB.Password)
	} else {
		u.User = url.User(c.DB.User)
	}
	return u.String()
}
