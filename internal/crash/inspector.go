package crash

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Inspector opens a debugger on a crashed binary and its core dump
type Inspector interface {
	Inspect(ctx context.Context, binaryPath, corePath string) error
}

// GDB runs an interactive gdb session on the terminal
type GDB struct {
	Stdin          io.Reader
	Stdout, Stderr io.Writer
}

// NewGDB creates a GDB inspector attached to the process terminal
func NewGDB() *GDB {
	return &GDB{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Inspect runs gdb on binaryPath and corePath until the user quits
func (g *GDB) Inspect(ctx context.Context, binaryPath, corePath string) error {
	cmd := exec.CommandContext(ctx, "gdb", binaryPath, corePath)
	cmd.Stdin = g.Stdin
	cmd.Stdout = g.Stdout
	cmd.Stderr = g.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run gdb: %w", err)
	}
	return nil
}

// DescribeFile runs the file utility on path and returns its output
func DescribeFile(ctx context.Context, path string) (string, error) {
	out, err := exec.CommandContext(ctx, "file", path).Output()
	if err != nil {
		return "", fmt.Errorf("run file utility: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
