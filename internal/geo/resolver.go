package geo

import (
	"regexp"
	"strings"
)

var qualifierExpr = regexp.MustCompile(`\s*\([^)]*\)`)

// Resolver maps feed geography tags to canonical country names.
type Resolver struct {
	table *Table
}

// NewResolver binds a resolver to a loaded reference table.
func NewResolver(table *Table) *Resolver {
	return &Resolver{table: table}
}

// Resolve returns the canonical name of the first candidate found in the table.
// Candidate order decides ties. A miss is a normal outcome, not an error.
func (r *Resolver) Resolve(candidates []string) (string, bool) {
	for _, candidate := range candidates {
		clean := StripQualifiers(candidate)
		if clean == "" {
			continue
		}
		if name, ok := r.table.Lookup(clean); ok {
			return name, true
		}
	}
	return "", false
}

// StripQualifiers removes parenthetical qualifiers such as "St Louis (Mo)" -> "St Louis".
func StripQualifiers(s string) string {
	return strings.TrimSpace(qualifierExpr.ReplaceAllString(s, ""))
}
