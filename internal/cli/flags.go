package cli

import "ptw/internal/config"

// Flags holds command-line flags
type Flags struct {
	ProjectPath string
	Dirs        []string
	NameFilter  string
	FailFast    bool
	TestCases   bool
	Format      string
}

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		ProjectPath: f.ProjectPath,
		Dirs:        f.Dirs,
		NameFilter:  f.NameFilter,
		FailFast:    f.FailFast,
	}
}
