package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"ptw/internal/domain"
)

// schema is applied by Migrate, each statement is idempotent
var schema = []string{
	"CREATE TABLE IF NOT EXISTS `ptw_runs` (" +
		"`run_id` CHAR(36) NOT NULL PRIMARY KEY," +
		"`started_at` DATETIME(3) NOT NULL," +
		"`duration` VARCHAR(64) NOT NULL," +
		"`total_tests` INT NOT NULL," +
		"`retries` INT NOT NULL," +
		"`exit_code` INT NOT NULL," +
		"KEY `idx_started_at` (`started_at`))",
	"CREATE TABLE IF NOT EXISTS `ptw_attempts` (" +
		"`run_id` CHAR(36) NOT NULL," +
		"`number` INT NOT NULL," +
		"`tests` INT NOT NULL," +
		"`state` VARCHAR(32) NOT NULL," +
		"`success` BOOLEAN NOT NULL," +
		"`failed_groups` TEXT NOT NULL," +
		"`last_test` TEXT NULL," +
		"`last_temp_dir` TEXT NULL," +
		"`duration_seconds` DOUBLE NOT NULL," +
		"PRIMARY KEY (`run_id`, `number`))",
}

// MySQLStorage keeps every run report in MySQL
type MySQLStorage struct {
	db *sql.DB
}

// NewMySQLStorage validates dsn and opens a connection pool. No connection is
// made until the first query.
func NewMySQLStorage(dsn string) (*MySQLStorage, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid results DSN: %w", err)
	}
	if cfg.DBName == "" {
		return nil, errors.New("invalid results DSN: no database name")
	}
	cfg.ParseTime = true
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("results database connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(4)
	return &MySQLStorage{db: db}, nil
}

// Migrate creates the report tables if they do not exist
func (s *MySQLStorage) Migrate(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping results database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Save inserts the run and its attempts in one transaction
func (s *MySQLStorage) Save(ctx context.Context, report *domain.RunReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO `ptw_runs` (`run_id`, `started_at`, `duration`, `total_tests`, `retries`, `exit_code`) VALUES (?, ?, ?, ?, ?, ?)",
		report.RunID, report.StartedAt.UTC(), report.Duration, report.TotalTests, report.Retries, report.ExitCode)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, a := range report.Attempts {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO `ptw_attempts` (`run_id`, `number`, `tests`, `state`, `success`, `failed_groups`, `last_test`, `last_temp_dir`, `duration_seconds`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			report.RunID, a.Number, a.Tests, string(a.State), a.Success, strings.Join(a.FailedGroups, ","), a.LastTest, a.LastTempDir, a.DurationSeconds)
		if err != nil {
			return fmt.Errorf("insert attempt %d: %w", a.Number, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit report: %w", err)
	}
	return nil
}

// Load returns the most recent run
func (s *MySQLStorage) Load(ctx context.Context) (*domain.RunReport, error) {
	var r domain.RunReport
	err := s.db.QueryRowContext(ctx,
		"SELECT `run_id`, `started_at`, `duration`, `total_tests`, `retries`, `exit_code` FROM `ptw_runs` ORDER BY `started_at` DESC LIMIT 1").
		Scan(&r.RunID, &r.StartedAt, &r.Duration, &r.TotalTests, &r.Retries, &r.ExitCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New("no run recorded yet")
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT `number`, `tests`, `state`, `success`, `failed_groups`, COALESCE(`last_test`, ''), COALESCE(`last_temp_dir`, ''), `duration_seconds` FROM `ptw_attempts` WHERE `run_id` = ? ORDER BY `number`",
		r.RunID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			a      domain.AttemptRecord
			state  string
			groups string
		)
		if err := rows.Scan(&a.Number, &a.Tests, &state, &a.Success, &groups, &a.LastTest, &a.LastTempDir, &a.DurationSeconds); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.State = domain.State(state)
		a.FailedGroups = splitGroups(groups)
		r.Attempts = append(r.Attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read attempts: %w", err)
	}
	return &r, nil
}

// Close closes the connection pool
func (s *MySQLStorage) Close() error {
	return s.db.Close()
}

func splitGroups(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
