package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	// public function testCreateUser(), final protected static function test_it_works()
	testMethodPattern = regexp.MustCompile(`(?m)^\s*(?:(?:public|protected|private|static|final)\s+)*function\s+(test\w+)\s*\(`)

	// @test annotated methods, either in a docblock or on the line before
	annotatedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)/\*\*[\s\S]*?@test[\s\S]*?\*/\s*(?:(?:public|protected|private|static|final)\s+)*function\s+(\w+)\s*\(`),
		regexp.MustCompile(`(?m)#\[Test\]\s*(?:(?:public|protected|private|static|final)\s+)*function\s+(\w+)\s*\(`),
	}

	classPattern = regexp.MustCompile(`(?m)^\s*(?:(?:abstract|final)\s+)*class\s+(\w+)`)
)

// Parser parses test files to extract the test group and its test cases
type Parser struct{}

// NewParser creates a new Parser
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile returns the group (class) declared in filePath and its test methods
func (p *Parser) ParseFile(filePath string) (string, []string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", nil, fmt.Errorf("error reading file %s: %w", filePath, err)
	}
	src := string(content)
	return className(filePath, src), findTestCases(src), nil
}

// FindTestCases finds all test cases in a test file
func (p *Parser) FindTestCases(filePath string) ([]string, error) {
	_, cases, err := p.ParseFile(filePath)
	return cases, err
}

func className(filePath, src string) string {
	if m := classPattern.FindStringSubmatch(src); len(m) > 1 {
		return m[1]
	}
	return strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
}

func findTestCases(src string) []string {
	seen := make(map[string]bool)

	for _, match := range testMethodPattern.FindAllStringSubmatch(src, -1) {
		seen[match[1]] = true
	}
	for _, pattern := range annotatedPatterns {
		for _, match := range pattern.FindAllStringSubmatch(src, -1) {
			seen[match[1]] = true
		}
	}

	cases := make([]string, 0, len(seen))
	for name := range seen {
		cases = append(cases, name)
	}
	sort.Strings(cases)
	return cases
}
