package config

import "time"

const (
	// DefaultProjectPath is the default project path
	DefaultProjectPath = "."
	// DefaultTestBinary is the test runner invoked for every test, relative to the project path
	DefaultTestBinary = "vendor/bin/phpunit"
	// DefaultPHPBinary is the interpreter looked up in PATH when PHP_BINARY is unset
	DefaultPHPBinary = "php"
	// DefaultOutputJSONFile is the default run report file name
	DefaultOutputJSONFile = "test-results.json"
	// DefaultOutputJSONDir is the default output directory
	DefaultOutputJSONDir = "storage"
	// DefaultFailedDir is where -FAILED links are created, relative to the project path
	DefaultFailedDir = "storage/failed"
	// DefaultTimeout is how long the worker may stay silent before it is considered hung
	DefaultTimeout = 600 * time.Second
	// DefaultCrashConfirmDelay is how long a core file may sit unhandled before
	// the worker is considered stuck
	DefaultCrashConfirmDelay = 3 * time.Second
	// DefaultRetries is the number of extra attempts after the first one
	DefaultRetries = 0
)

// DefaultPathsToIgnore are the default directories to ignore when scanning for tests
var DefaultPathsToIgnore = []string{
	"vendor",
	"node_modules",
	"public",
	"storage",
	"bootstrap",
	"config",
	"database",
	"resources",
	"routes",
}
