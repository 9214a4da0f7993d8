package discovery

import (
	"fmt"
	"log/slog"

	"ptw/internal/domain"
)

// VisitFunc receives every discovered test case
type VisitFunc func(testID, group, method, file string)

// Discoverer turns directory trees into test collections
type Discoverer struct {
	scanner *Scanner
	parser  *Parser
	logger  *slog.Logger
}

// NewDiscoverer creates a new Discoverer
func NewDiscoverer(scanner *Scanner, parser *Parser, logger *slog.Logger) *Discoverer {
	return &Discoverer{scanner: scanner, parser: parser, logger: logger}
}

// TestID builds the identifier of the method test case declared in file
func TestID(file, method string) string {
	return file + "::" + method
}

// Discover walks dir and calls visit for every test case found
func (d *Discoverer) Discover(dir string, visit VisitFunc) error {
	files, err := d.scanner.Scan(dir)
	if err != nil {
		return err
	}
	for _, file := range files {
		group, methods, err := d.parser.ParseFile(file)
		if err != nil {
			return err
		}
		if len(methods) == 0 {
			d.logger.Debug("no test cases found", "file", file)
		}
		for _, method := range methods {
			visit(TestID(file, method), group, method, file)
		}
	}
	return nil
}

// Collect discovers every directory in order and returns the resulting collection
func (d *Discoverer) Collect(dirs []string) (domain.Collection, error) {
	var tests []domain.Test
	seen := make(map[string]bool)
	for _, dir := range dirs {
		d.logger.Info(fmt.Sprintf("Adding tests from directory tree %s", dir))
		err := d.Discover(dir, func(testID, group, method, file string) {
			if seen[testID] {
				return
			}
			seen[testID] = true
			tests = append(tests, domain.Test{ID: testID, Group: group, Method: method, File: file})
		})
		if err != nil {
			return domain.Collection{}, fmt.Errorf("discover %s: %w", dir, err)
		}
	}
	return domain.NewCollection(tests...), nil
}
