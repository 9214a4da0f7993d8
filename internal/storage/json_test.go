package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ptw/internal/config"
	"ptw/internal/domain"
)

func testReport() *domain.RunReport {
	return &domain.RunReport{
		RunID:      "3f1c8a52-5b2e-4c1e-9d59-0c6a0f6f2f10",
		StartedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:   "1m2s",
		TotalTests: 12,
		Retries:    1,
		ExitCode:   2,
		Attempts: []domain.AttemptRecord{
			{Number: 1, Tests: 12, State: domain.StateDone, FailedGroups: []string{"UserTest"}},
			{Number: 2, Tests: 3, State: domain.StateFatalTimeout, FailedGroups: []string{}, LastTest: "UserTest.php::testLogin"},
		},
	}
}

func TestJSONStorage_SaveLoad(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "ptw-storage-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	cfg := config.New()
	cfg.ProjectPath = tmpDir
	s := NewJSONStorage(cfg)

	if err := s.Save(context.Background(), testReport()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, cfg.OutputJSONDir, cfg.OutputJSONFile)); err != nil {
		t.Fatalf("report file not written: %v", err)
	}

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.RunID != testReport().RunID || got.ExitCode != 2 {
		t.Errorf("Load() = %+v", got)
	}
	final := got.FinalAttempt()
	if final == nil || final.State != domain.StateFatalTimeout || final.LastTest != "UserTest.php::testLogin" {
		t.Errorf("FinalAttempt() = %+v", final)
	}
}

func TestJSONStorage_LoadMissing(t *testing.T) {
	cfg := config.New()
	cfg.ProjectPath = t.TempDir()

	if _, err := NewJSONStorage(cfg).Load(context.Background()); err == nil {
		t.Error("Load() expected error for missing report")
	}
}

func TestNewStorage(t *testing.T) {
	cfg := config.New()
	s, err := NewStorage(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*JSONStorage); !ok {
		t.Errorf("NewStorage() = %T, want *JSONStorage", s)
	}

	cfg.ResultsDSN = "ptw:secret@tcp(127.0.0.1:3306)/ptw_results"
	s, err = NewStorage(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*MySQLStorage); !ok {
		t.Errorf("NewStorage() = %T, want *MySQLStorage", s)
	}
}

func TestStorage_Close(t *testing.T) {
	cfg := config.New()
	if err := NewJSONStorage(cfg).Close(); err != nil {
		t.Errorf("JSONStorage.Close() = %v", err)
	}

	cfg.ResultsDSN = "ptw:secret@tcp(127.0.0.1:3306)/ptw_results"
	s, err := NewStorage(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("MySQLStorage.Close() = %v", err)
	}
	// a closed pool refuses work before dialing
	err = s.Save(context.Background(), testReport())
	if err == nil || !strings.Contains(err.Error(), "database is closed") {
		t.Errorf("Save() after Close() = %v, want database is closed", err)
	}
}

func TestNewMySQLStorage_InvalidDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
	}{
		{"garbage", "not a dsn"},
		{"no database", "ptw:secret@tcp(127.0.0.1:3306)/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMySQLStorage(tt.dsn); err == nil {
				t.Errorf("NewMySQLStorage(%q) expected error", tt.dsn)
			}
		})
	}
}

func TestSplitGroups(t *testing.T) {
	if got := splitGroups(""); len(got) != 0 {
		t.Errorf("splitGroups(\"\") = %v", got)
	}
	if got := splitGroups("A,B"); len(got) != 2 || got[1] != "B" {
		t.Errorf("splitGroups(\"A,B\") = %v", got)
	}
}
