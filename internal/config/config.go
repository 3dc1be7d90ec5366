// Package config loads the service configuration from a .env file and the
// process environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/stockelper/stockgraph/internal/platform/envutil"
)

type Neo4jConfig struct {
	URI         string
	User        string
	Password    string
	Database    string
	Timeout     time.Duration
	MaxPoolSize int
}

type KISConfig struct {
	BaseURL     string
	AppKey      string
	AppSecret   string
	AccessToken string
}

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

type DartConfig struct {
	BaseURL string
	APIKey  string
}

type Config struct {
	Neo4j Neo4jConfig
	KIS   KISConfig
	Mongo MongoConfig
	Dart  DartConfig

	// EnvPath is where the credential store persists refreshed tokens.
	EnvPath string

	// SourceInterval is the minimum spacing between outbound calls to the
	// rate-limited sources.
	SourceInterval time.Duration
}

const (
	defaultKISBaseURL  = "https://openapi.koreainvestment.com:9443"
	defaultDartBaseURL = "https://opendart.fss.or.kr/api"
)

// Load reads the .env file at envPath (if present) into the process
// environment, then builds the Config. Required variables missing from the
// environment fail the load.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file %s: %w", envPath, err)
		}
	}

	neo4j := Neo4jConfig{
		Database:    envutil.String("NEO4J_DATABASE", ""),
		Timeout:     time.Duration(envutil.Int("NEO4J_TIMEOUT_SECONDS", 10)) * time.Second,
		MaxPoolSize: envutil.Int("NEO4J_MAX_POOL_SIZE", 50),
	}
	var err error
	if neo4j.URI, err = required("NEO4J_URI"); err != nil {
		return nil, err
	}
	if neo4j.User, err = required("NEO4J_USER"); err != nil {
		return nil, err
	}
	if neo4j.Password, err = required("NEO4J_PASSWORD"); err != nil {
		return nil, err
	}

	kis := KISConfig{
		BaseURL:     envutil.String("KIS_BASE_URL", defaultKISBaseURL),
		AccessToken: envutil.String("KIS_ACCESS_TOKEN", ""),
	}
	if kis.AppKey, err = required("KIS_APP_KEY"); err != nil {
		return nil, err
	}
	if kis.AppSecret, err = required("KIS_APP_SECRET"); err != nil {
		return nil, err
	}

	mongo := MongoConfig{}
	if mongo.URI, err = required("DB_URI"); err != nil {
		return nil, err
	}
	if mongo.Database, err = required("DB_NAME"); err != nil {
		return nil, err
	}
	if mongo.Collection, err = required("DB_COLLECTION_NAME"); err != nil {
		return nil, err
	}

	dart := DartConfig{
		BaseURL: envutil.String("DART_BASE_URL", defaultDartBaseURL),
	}
	if dart.APIKey, err = required("OPEN_DART_API_KEY"); err != nil {
		return nil, err
	}

	sleepSeconds := envutil.Float("SLEEP_SECONDS", 0.1)
	if sleepSeconds < 0 {
		sleepSeconds = 0
	}

	return &Config{
		Neo4j:          neo4j,
		KIS:            kis,
		Mongo:          mongo,
		Dart:           dart,
		EnvPath:        envPath,
		SourceInterval: time.Duration(sleepSeconds * float64(time.Second)),
	}, nil
}

func required(name string) (string, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return "", fmt.Errorf("required environment variable %s is not set", name)
	}
	return v, nil
}
