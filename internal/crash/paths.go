// Package crash detects crash dumps left in worker temp directories and
// preserves the evidence when the supervisor gives up on a worker.
package crash

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// CoreFileName is the core dump file name inside a test temp dir
	CoreFileName = "core"
	// HandledMarkerName is written next to the core once the worker processed it
	HandledMarkerName = "_core_handled"
)

// CorePath returns the expected core dump path for a test temp dir
func CorePath(tempDir string) string {
	return filepath.Join(tempDir, CoreFileName)
}

// HandledMarkerPath returns the handled-marker path for a test temp dir
func HandledMarkerPath(tempDir string) string {
	return filepath.Join(tempDir, HandledMarkerName)
}

// CoreExists reports whether tempDir holds a core dump
func CoreExists(tempDir string) bool {
	return tempDir != "" && isFile(CorePath(tempDir))
}

// HandledMarkerExists reports whether the crash in tempDir was already handled.
// The marker is written by another process, so a false result may be stale
// by the time the caller acts on it.
func HandledMarkerExists(tempDir string) bool {
	return tempDir != "" && isFile(HandledMarkerPath(tempDir))
}

// MarkHandled writes the handled marker into tempDir
func MarkHandled(tempDir string) error {
	if err := os.WriteFile(HandledMarkerPath(tempDir), nil, 0644); err != nil {
		return fmt.Errorf("write handled marker: %w", err)
	}
	return nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
