package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DebugMode selects how crashes and hangs are debugged
type DebugMode string

const (
	DebugOff       DebugMode = ""
	DebugGDB       DebugMode = "gdb"
	DebugGDBServer DebugMode = "gdbserver"
	DebugCore      DebugMode = "core"
)

// Interactive reports whether the mode needs a live terminal, which rules out
// running the worker in a separate process.
func (d DebugMode) Interactive() bool {
	return d == DebugGDB || d == DebugGDBServer
}

// Config holds all configuration for a ptw run. It is built once by Load
// and passed by value; nothing modifies it afterwards.
type Config struct {
	// Project settings
	ProjectPath   string   `json:"project_path"`
	TestBinary    string   `json:"test_binary"`
	PHPBinary     string   `json:"php_binary"`
	Dirs          []string `json:"dirs"`
	PathsToIgnore []string `json:"paths_to_ignore"`
	NameFilter    string   `json:"name_filter"`

	// Supervision
	Timeout           time.Duration `json:"timeout"`
	CrashConfirmDelay time.Duration `json:"crash_confirm_delay"`
	Retries           int           `json:"retries"`

	// Execution
	Verbosity int       `json:"verbosity"`
	FailFast  bool      `json:"fail_fast"`
	Debug     DebugMode `json:"debug"`
	Step      bool      `json:"step"`

	// Artifacts and output
	TempRoot       string `json:"temp_root"`
	PostMortemDir  string `json:"post_mortem_dir"`
	FailedDir      string `json:"failed_dir"`
	OutputJSONFile string `json:"output_json_file"`
	OutputJSONDir  string `json:"output_json_dir"`
	ResultsDSN     string `json:"-"`
	MetricsFile    string `json:"metrics_file"`
}

// Flags holds command-line flags
type Flags struct {
	ProjectPath string
	Dirs        []string
	NameFilter  string
	FailFast    bool
}

// Environment keys read by Load
const (
	EnvVerbosity     = "V"
	EnvTimeout       = "TIMEOUT"
	EnvDebug         = "DEBUG"
	EnvStep          = "STEP"
	EnvRetries       = "RETRIES"
	EnvFailedDir     = "FAILED_DIR"
	EnvCoreTimeout   = "CORE_TIMEOUT"
	EnvTestBinary    = "TEST_BINARY"
	EnvPHPBinary     = "PHP_BINARY"
	EnvTempRoot      = "PTW_TEMP_ROOT"
	EnvResultsDSN    = "PTW_RESULTS_DSN"
	EnvMetricsFile   = "PTW_METRICS_FILE"
	EnvPostMortemDir = "PTW_POST_MORTEM_DIR"
)

// New creates a new Config with defaults
func New() Config {
	cfg := Config{
		ProjectPath:       DefaultProjectPath,
		TestBinary:        DefaultTestBinary,
		Timeout:           DefaultTimeout,
		CrashConfirmDelay: DefaultCrashConfirmDelay,
		Retries:           DefaultRetries,
		TempRoot:          os.TempDir(),
		PostMortemDir:     os.TempDir(),
		FailedDir:         DefaultFailedDir,
		OutputJSONFile:    DefaultOutputJSONFile,
		OutputJSONDir:     DefaultOutputJSONDir,
	}
	// Copy default paths to ignore
	cfg.PathsToIgnore = make([]string, len(DefaultPathsToIgnore))
	copy(cfg.PathsToIgnore, DefaultPathsToIgnore)
	return cfg
}

// Load builds the run configuration from flags, the project's .env file and
// the process environment.
func Load(flags Flags) (Config, error) {
	cfg := New()
	if flags.ProjectPath != "" {
		cfg.ProjectPath = flags.ProjectPath
	}
	cfg.Dirs = append([]string(nil), flags.Dirs...)
	cfg.NameFilter = flags.NameFilter
	cfg.FailFast = flags.FailFast

	// .env file might not exist, that's okay - use environment variables
	_ = godotenv.Load(filepath.Join(cfg.ProjectPath, ".env"))

	v := newViper()

	cfg.Verbosity = intSetting(v, EnvVerbosity, 0)
	cfg.Timeout = secondsSetting(v, EnvTimeout, DefaultTimeout)
	cfg.CrashConfirmDelay = secondsSetting(v, EnvCoreTimeout, DefaultCrashConfirmDelay)
	cfg.Retries = intSetting(v, EnvRetries, DefaultRetries)
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	cfg.Step = truthy(v.GetString(EnvStep))

	debug, err := ParseDebugMode(v.GetString(EnvDebug))
	if err != nil {
		return Config{}, err
	}
	cfg.Debug = debug

	if s := v.GetString(EnvFailedDir); s != "" {
		cfg.FailedDir = s
	}
	if s := v.GetString(EnvTestBinary); s != "" {
		cfg.TestBinary = s
	}
	if s := v.GetString(EnvPHPBinary); s != "" {
		cfg.PHPBinary = s
	} else if php, err := exec.LookPath(DefaultPHPBinary); err == nil {
		cfg.PHPBinary = php
	}
	if s := v.GetString(EnvTempRoot); s != "" {
		cfg.TempRoot = s
	}
	if s := v.GetString(EnvPostMortemDir); s != "" {
		cfg.PostMortemDir = s
	}
	cfg.ResultsDSN = v.GetString(EnvResultsDSN)
	cfg.MetricsFile = v.GetString(EnvMetricsFile)

	cfg.FailedDir = cfg.resolve(cfg.FailedDir)
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for _, key := range []string{
		EnvVerbosity, EnvTimeout, EnvDebug, EnvStep, EnvRetries, EnvFailedDir, EnvCoreTimeout,
		EnvTestBinary, EnvPHPBinary, EnvTempRoot, EnvResultsDSN, EnvMetricsFile, EnvPostMortemDir,
	} {
		_ = v.BindEnv(key, key)
	}
	return v
}

// ParseDebugMode parses the DEBUG environment value
func ParseDebugMode(s string) (DebugMode, error) {
	switch mode := DebugMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case DebugOff, DebugGDB, DebugGDBServer, DebugCore:
		return mode, nil
	default:
		return DebugOff, fmt.Errorf("unsupported %s mode %q (want gdb, gdbserver or core)", EnvDebug, s)
	}
}

func intSetting(v *viper.Viper, key string, def int) int {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func secondsSetting(v *viper.Viper, key string, def time.Duration) time.Duration {
	n := intSetting(v, key, -1)
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "1":
		return true
	}
	return false
}

// resolve makes p absolute relative to the project path
func (c Config) resolve(p string) string {
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.ProjectPath, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// Isolated reports whether the worker runs in a separate supervised process.
// Interactive debugging and single stepping need the terminal and run in-process.
func (c Config) Isolated() bool {
	return !c.Debug.Interactive() && !c.Step
}

// GetTestDirs returns the directories to discover tests in, relative to the project path
func (c Config) GetTestDirs() []string {
	if len(c.Dirs) == 0 {
		return []string{c.ProjectPath}
	}
	dirs := make([]string, 0, len(c.Dirs))
	for _, d := range c.Dirs {
		if filepath.IsAbs(d) {
			dirs = append(dirs, d)
			continue
		}
		dirs = append(dirs, filepath.Join(c.ProjectPath, d))
	}
	return dirs
}

// GetOutputPath returns the full path to the run report file.
// Resolves to an absolute path so run and failures always read/write the same file regardless of cwd.
func (c Config) GetOutputPath() string {
	return c.resolve(filepath.Join(c.OutputJSONDir, c.OutputJSONFile))
}

// GetTestBinaryPath returns the absolute path to the test runner binary
func (c Config) GetTestBinaryPath() string {
	return c.resolve(c.TestBinary)
}

// PostMortemPath returns where the component under test leaves its
// post-mortem snapshot for the given process id
func (c Config) PostMortemPath(pid int) string {
	return filepath.Join(c.PostMortemDir, fmt.Sprintf("api_post_mortem.%d", pid))
}
