package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ptw/internal/config"
	"ptw/internal/domain"
)

// JSONStorage stores the latest run report in a JSON file under the configured output path.
type JSONStorage struct {
	cfg config.Config
}

// NewJSONStorage returns a Storage that reads/writes the config's output JSON path.
func NewJSONStorage(cfg config.Config) *JSONStorage {
	return &JSONStorage{cfg: cfg}
}

// Save writes report to the configured JSON output file, replacing the previous run.
func (s *JSONStorage) Save(_ context.Context, report *domain.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	path := s.cfg.GetOutputPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Load reads the last run report from the configured JSON output file.
func (s *JSONStorage) Load(_ context.Context) (*domain.RunReport, error) {
	data, err := os.ReadFile(s.cfg.GetOutputPath())
	if err != nil {
		return nil, fmt.Errorf("read report file: %w", err)
	}
	var report domain.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &report, nil
}

// Close is a no-op, the file is opened per call
func (s *JSONStorage) Close() error {
	return nil
}
