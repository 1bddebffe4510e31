// Package config provides configuration management for articlehub.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendBadger = "badger"
	BackendS3     = "s3"
	BackendNeo4j  = "neo4j"
)

// Config holds the configuration for articlehub.
type Config struct {
	RedisAddr string

	DocumentBackend string
	MongoURI        string
	MongoDatabase   string

	BlobBackend string
	BadgerPath  string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	GraphBackend  string
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string
	TimelineLimit int

	EventStream string
	HTTPPort    string

	SweepInterval time.Duration
	SweepDelete   bool

	LogLevel string
}

// NewConfig creates a new Config from environment variables.
func NewConfig() *Config {
	limit, _ := strconv.Atoi(getEnvOrDefault("TIMELINE_LIMIT", "50"))
	interval, err := time.ParseDuration(getEnvOrDefault("SWEEP_INTERVAL", "10m"))
	if err != nil {
		interval = 10 * time.Minute
	}
	sweepDelete, _ := strconv.ParseBool(getEnvOrDefault("SWEEP_DELETE", "false"))

	return &Config{
		RedisAddr:       getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		DocumentBackend: getEnvOrDefault("DOCUMENT_BACKEND", BackendRedis),
		MongoURI:        getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnvOrDefault("MONGO_DATABASE", "articlehub"),
		BlobBackend:     getEnvOrDefault("BLOB_BACKEND", BackendBadger),
		BadgerPath:      getEnvOrDefault("BADGER_PATH", "./badger-data"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3Region:        getEnvOrDefault("S3_REGION", "us-east-1"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		GraphBackend:    getEnvOrDefault("GRAPH_BACKEND", BackendRedis),
		Neo4jURI:        getEnvOrDefault("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:       getEnvOrDefault("NEO4J_USER", "neo4j"),
		Neo4jPassword:   os.Getenv("NEO4J_PASSWORD"),
		Neo4jDatabase:   os.Getenv("NEO4J_DATABASE"),
		TimelineLimit:   limit,
		EventStream:     getEnvOrDefault("EVENT_STREAM", "stream:articles"),
		HTTPPort:        getEnvOrDefault("HTTP_PORT", "8080"),
		SweepInterval:   interval,
		SweepDelete:     sweepDelete,
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
	}
}

// Validate checks backend names and the settings each backend needs.
func (c *Config) Validate() error {
	var errs []error

	switch c.DocumentBackend {
	case BackendRedis:
	case BackendMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo document backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown document backend %q", c.DocumentBackend))
	}

	switch c.BlobBackend {
	case BackendBadger:
		if c.BadgerPath == "" {
			errs = append(errs, errors.New("BADGER_PATH is required for the badger blob backend"))
		}
	case BackendS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 blob backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob backend %q", c.BlobBackend))
	}

	switch c.GraphBackend {
	case BackendRedis:
	case BackendNeo4j:
		if c.Neo4jURI == "" {
			errs = append(errs, errors.New("NEO4J_URI is required for the neo4j graph backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown graph backend %q", c.GraphBackend))
	}

	if c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// getEnvOrDefault returns the value of an environment variable or a default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
