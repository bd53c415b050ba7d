package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spectraml/spectrajobs/pkg/models"
)

// WorkerProcessConfig holds the configuration for a worker process.
type WorkerProcessConfig struct {
	AMQPURL    string
	APIBaseURL string
	// Token is the plaintext worker callback token; the server holds only
	// its bcrypt hash.
	Token   string
	JobType models.JobType
}

// LoadWorkerProcess reads worker configuration from environment variables.
func LoadWorkerProcess() (*WorkerProcessConfig, error) {
	cfg := &WorkerProcessConfig{
		AMQPURL:    os.Getenv("AMQP_URL"),
		APIBaseURL: strings.TrimRight(os.Getenv("API_BASE_URL"), "/"),
		Token:      os.Getenv("WORKER_TOKEN"),
		JobType:    models.JobType(os.Getenv("WORKER_JOB_TYPE")),
	}

	if cfg.AMQPURL == "" {
		return nil, fmt.Errorf("AMQP_URL is required")
	}
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("WORKER_TOKEN is required")
	}
	if !cfg.JobType.Valid() {
		return nil, fmt.Errorf("WORKER_JOB_TYPE must be DATA_PREPROCESSING or ACTIVE_ML, got %q", cfg.JobType)
	}

	return cfg, nil
}
