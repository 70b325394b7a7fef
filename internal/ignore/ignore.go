package ignore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/denormal/go-gitignore"

	"file-recorder/internal/logging"
)

var log = logging.For("ignore")

// Matcher decides whether a path should be skipped.
// It is immutable after construction and safe for concurrent use.
type Matcher struct {
	rootDir  string
	patterns []string
	rules    gitignore.GitIgnore
}

// MatcherOptions configures a Matcher.
type MatcherOptions struct {
	// Patterns are doublestar globs matched case-insensitively against the
	// base name and against the path relative to RootDir.
	Patterns []string
	// RootDir enables relative-path matching and loading RulesFileName.
	RootDir string
	// LoadRulesFile reads RootDir/RulesFileName when present.
	LoadRulesFile bool
}

// NewMatcher creates a matcher. Invalid patterns are dropped with a warning.
func NewMatcher(options MatcherOptions) *Matcher {
	m := &Matcher{rootDir: options.RootDir}

	for _, p := range options.Patterns {
		p = strings.ToLower(strings.ReplaceAll(p, `\`, "/"))
		if !doublestar.ValidatePattern(p) {
			log.Warn("Ignoring invalid pattern %q", p)
			continue
		}
		m.patterns = append(m.patterns, p)
	}

	if options.LoadRulesFile && options.RootDir != "" {
		m.rules = loadRulesFile(filepath.Join(options.RootDir, RulesFileName), options.RootDir)
	}

	return m
}

// NewTransientMatcher returns the matcher used to filter watch events.
func NewTransientMatcher() *Matcher {
	return NewMatcher(MatcherOptions{Patterns: TransientPatterns})
}

// NewScanMatcher returns the matcher used when walking root.
func NewScanMatcher(root string) *Matcher {
	return NewMatcher(MatcherOptions{Patterns: ScanPatterns, RootDir: root, LoadRulesFile: true})
}

// ShouldIgnore reports whether path (absolute, or relative to the root)
// should be skipped. isDir is used for directory-only rules.
func (m *Matcher) ShouldIgnore(path string, isDir bool) bool {
	if m == nil {
		return false
	}

	base := strings.ToLower(filepath.Base(path))
	for _, p := range m.patterns {
		if ok, _ := doublestar.Match(p, base); ok {
			return true
		}
	}

	rel := m.relative(path)
	if rel == "" {
		return false
	}

	lowerRel := strings.ToLower(rel)
	for _, p := range m.patterns {
		if !strings.Contains(p, "/") {
			continue
		}
		if ok, _ := doublestar.Match(p, lowerRel); ok {
			return true
		}
	}

	if m.rules != nil {
		if match := m.rules.Relative(rel, isDir); match != nil && match.Ignore() {
			return true
		}
	}
	return false
}

// relative returns path relative to the root with forward slashes, or ""
// when path is outside the root or no root is set.
func (m *Matcher) relative(path string) string {
	if m.rootDir == "" {
		return ""
	}
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(m.rootDir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return filepath.ToSlash(rel)
}

// loadRulesFile reads a gitignore-syntax file. Missing files yield nil.
func loadRulesFile(filePath, baseDir string) gitignore.GitIgnore {
	f, err := os.Open(filePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	log.Debug("Loaded ignore rules from %s", filePath)
	return gitignore.New(f, baseDir, nil)
}
