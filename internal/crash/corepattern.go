package crash

import (
	"log/slog"
	"os"
	"strings"
)

// CorePatternPath is where the kernel exposes its core dump pattern
const CorePatternPath = "/proc/sys/kernel/core_pattern"

// CheckCorePattern warns when the kernel pipes core dumps to a helper
// program, in which case cores may never show up in test temp dirs.
func CheckCorePattern(logger *slog.Logger, patternPath string) {
	data, err := os.ReadFile(patternPath)
	if err != nil {
		logger.Debug("cannot read core pattern", "path", patternPath, "error", err)
		return
	}
	pattern := strings.TrimSpace(string(data))
	if strings.HasPrefix(pattern, "|") {
		logger.Warn("core dumps are piped to a helper program and may be missing or truncated in test directories",
			"core_pattern", pattern)
	}
}
