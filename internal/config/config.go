// Package config defines service configuration and its loading hooks.
package config

import (
	"runtime"
	"time"
)

// Backends a sweep can run against.
const (
	BackendLocal = "local"
	BackendLivy  = "livy"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// QueueSize bounds the in-memory trial queue.
	QueueSize int `koanf:"queue_size" validate:"min=1"`
	// WorkerCount sets the number of trial workers.
	WorkerCount int `koanf:"worker_count" validate:"min=1"`
	// DedupeSize bounds the remembered sweep request IDs.
	DedupeSize int `koanf:"dedupe_size"`

	// Backend selects where models are fit: local or livy.
	Backend string `koanf:"backend" validate:"oneof=local livy"`
	// Algorithm is the swept regressor: gbt or rf.
	Algorithm    string  `koanf:"algorithm" validate:"oneof=gbt rf"`
	LearningRate float64 `koanf:"learning_rate" validate:"gt=0,lte=1"`

	// DataPath is the delimited file the sweep trains on.
	DataPath       string   `koanf:"data_path" validate:"required"`
	LabelColumn    string   `koanf:"label_column" validate:"required"`
	FeatureColumns []string `koanf:"feature_columns" validate:"min=1,dive,required"`
	// SampleRows caps the rows drawn from the dataset; 0 keeps every row.
	SampleRows int `koanf:"sample_rows" validate:"min=0"`
	// ValidationFraction is the share of rows held out for scoring trials.
	ValidationFraction float64 `koanf:"validation_fraction" validate:"gt=0,lt=1"`
	Seed               int64   `koanf:"seed"`

	// Default sweep range, inclusive.
	SweepStart int `koanf:"sweep_start" validate:"min=1"`
	SweepStop  int `koanf:"sweep_stop" validate:"gtfield=SweepStart"`
	SweepStep  int `koanf:"sweep_step" validate:"min=1"`

	// Retrain fits the recommended value on the full dataset and registers it.
	Retrain   bool   `koanf:"retrain"`
	ModelName string `koanf:"model_name" validate:"required"`

	LivyURL           string        `koanf:"livy_url" validate:"required_if=Backend livy"`
	LivyKind          string        `koanf:"livy_kind" validate:"oneof=pyspark spark sparkr sql"`
	LivyProxyUser     string        `koanf:"livy_proxy_user"`
	LivyPollInterval  time.Duration `koanf:"livy_poll_interval" validate:"gt=0"`
	LivyTimeout       time.Duration `koanf:"livy_timeout" validate:"gt=0"`
	LivyBreakerTrips  uint32        `koanf:"livy_breaker_trips" validate:"min=1"`
	LivyExecutorCores int           `koanf:"livy_executor_cores" validate:"min=0"`
	LivyExecutorMem   string        `koanf:"livy_executor_memory"`

	HDFSNamenodes []string `koanf:"hdfs_namenodes" validate:"required_if=Backend livy"`
	HDFSUser      string   `koanf:"hdfs_user"`
	// HDFSDir is the remote working directory for splits and models.
	HDFSDir string `koanf:"hdfs_dir" validate:"required"`

	// WorkDir holds local split files and, for the local backend, the storage root.
	WorkDir     string `koanf:"work_dir" validate:"required"`
	RegistryDir string `koanf:"registry_dir" validate:"required"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		QueueSize:          10_000,
		WorkerCount:        runtime.NumCPU(),
		DedupeSize:         10_000,
		Backend:            BackendLocal,
		Algorithm:          "gbt",
		LearningRate:       0.1,
		DataPath:           "data/train.csv",
		LabelColumn:        "label",
		FeatureColumns:     []string{"x"},
		ValidationFraction: 0.2,
		Seed:               42,
		SweepStart:         1,
		SweepStop:          30,
		SweepStep:          1,
		Retrain:            true,
		ModelName:          "elbow-gbt",
		LivyKind:           "pyspark",
		LivyPollInterval:   time.Second,
		LivyTimeout:        10 * time.Minute,
		LivyBreakerTrips:   5,
		HDFSUser:           "hdfs",
		HDFSDir:            "/user/elbow",
		WorkDir:            "work",
		RegistryDir:        "models",
	}
}
