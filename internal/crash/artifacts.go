package crash

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"ptw/internal/config"
	"ptw/internal/domain"
)

// FailedSuffix is appended to the temp dir name to form the failure link
const FailedSuffix = "-FAILED"

// Preserver keeps the evidence of a worker the supervisor is about to kill.
// Every step is best effort: failures are logged and never returned, so the
// fatal path always gets to terminate the worker.
type Preserver struct {
	cfg       config.Config
	logger    *slog.Logger
	inspector Inspector
	describe  func(ctx context.Context, path string) (string, error)
	pattern   string
}

// NewPreserver creates a Preserver. inspector is only used in core debug mode and may be nil.
func NewPreserver(cfg config.Config, logger *slog.Logger, inspector Inspector) *Preserver {
	return &Preserver{
		cfg:       cfg,
		logger:    logger,
		inspector: inspector,
		describe:  DescribeFile,
		pattern:   CorePatternPath,
	}
}

// FailedLinkPath returns the -FAILED link location for a test temp dir
func (p *Preserver) FailedLinkPath(tempDir string) string {
	return filepath.Join(p.cfg.FailedDir, filepath.Base(tempDir)+FailedSuffix)
}

// Preserve links the last test's temp dir into the failed dir, copies the
// post-mortem snapshot next to it and reports any core dump.
func (p *Preserver) Preserve(ctx context.Context, last *domain.HeartbeatEvent) {
	if last == nil || last.WorkerTempDir == "" {
		p.logger.Error("no test temp dir known, nothing to preserve")
		return
	}
	tempDir := last.WorkerTempDir

	p.linkFailed(tempDir)
	p.copyPostMortem(last.WorkerPID, tempDir)

	if last.WorkerBinaryPath == "" || !CoreExists(tempDir) {
		return
	}
	corePath := CorePath(tempDir)
	p.logger.Error("core file exists in test temporary directory", "core", corePath)
	CheckCorePattern(p.logger, p.pattern)

	p.logger.Debug("running file utility on core", "core", corePath)
	if info, err := p.describe(ctx, corePath); err != nil {
		p.logger.Error("could not run file utility on core file", "core", corePath, "error", err)
	} else {
		p.logger.Debug(info)
	}

	if p.cfg.Debug == config.DebugCore && p.inspector != nil {
		if err := p.inspector.Inspect(ctx, last.WorkerBinaryPath, corePath); err != nil {
			p.logger.Error("inspector failed", "binary", last.WorkerBinaryPath, "core", corePath, "error", err)
		}
	}
}

func (p *Preserver) linkFailed(tempDir string) {
	link := p.FailedLinkPath(tempDir)
	p.logger.Error(fmt.Sprintf("Creating a link to the failed test: %s -> %s", link, filepath.Base(tempDir)))
	if err := os.MkdirAll(p.cfg.FailedDir, 0755); err != nil {
		p.logger.Error("cannot create failed dir", "dir", p.cfg.FailedDir, "error", err)
		return
	}
	if err := os.Symlink(tempDir, link); err != nil {
		p.logger.Error("cannot link failed test dir", "link", link, "error", err)
	}
}

func (p *Preserver) copyPostMortem(pid int, tempDir string) {
	if pid <= 0 {
		return
	}
	src := p.cfg.PostMortemPath(pid)
	if !isFile(src) {
		return
	}
	p.logger.Error(fmt.Sprintf("Copying %s to %s", filepath.Base(src), tempDir))
	if err := copyFile(src, filepath.Join(tempDir, filepath.Base(src))); err != nil {
		p.logger.Error("cannot copy post-mortem file", "src", src, "error", err)
	}
}

// copyFile copies src to dst keeping its mode and modification time
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
