package fim

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreRules holds the ordered set of exclusion rules applied by the scan
// engine before a path is considered for monitoring. Rules are tried in the
// fixed order: literal prefixes, then glob patterns, then regular
// expressions. Glob sits between the two so it never overrides a literal
// match or gets shadowed by a regex one.
type IgnoreRules struct {
	literals []string
	globs    []string
	regexes  []*regexp.Regexp
}

// NewIgnoreRules compiles the given literal prefixes, glob patterns, and
// regular expressions into an IgnoreRules set.
func NewIgnoreRules(literals, globs, regexPatterns []string) (*IgnoreRules, error) {
	regexes := make([]*regexp.Regexp, 0, len(regexPatterns))
	for _, pattern := range regexPatterns {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		regexes = append(regexes, compiled)
	}

	// Validate glob patterns eagerly so a malformed configuration fails at
	// load time rather than mid-scan.
	for _, pattern := range globs {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errInvalidGlobPattern(pattern)
		}
	}

	return &IgnoreRules{
		literals: append([]string(nil), literals...),
		globs:    append([]string(nil), globs...),
		regexes:  regexes,
	}, nil
}

// Matches reports whether path is excluded by any rule, returning early on
// the first match in fixed precedence order.
func (r *IgnoreRules) Matches(path string) bool {
	if r == nil {
		return false
	}

	// Literal prefix ignores: case-insensitive equality bounded by the
	// ignore entry's own length, not the path's — so "/etc" in the ignore
	// list excludes "/etcetera" as well as "/etc" itself.
	for _, literal := range r.literals {
		if len(path) >= len(literal) && strings.EqualFold(path[:len(literal)], literal) {
			return true
		}
	}

	for _, glob := range r.globs {
		if ok, _ := doublestar.Match(glob, path); ok {
			return true
		}
	}

	for _, re := range r.regexes {
		if re.MatchString(path) {
			return true
		}
	}

	return false
}

type invalidGlobPatternError struct {
	pattern string
}

func (e *invalidGlobPatternError) Error() string {
	return "invalid glob ignore pattern: " + e.pattern
}

func errInvalidGlobPattern(pattern string) error {
	return &invalidGlobPatternError{pattern: pattern}
}
