// Package sqlparse extracts table references from SQL text.
//
// This is a best-effort lexical scan, not a parser: subqueries, CTEs,
// comments, and string literals that contain the trigger keywords are
// known blind spots. An input that yields no identifiers produces an
// empty set, which fails closed against an allow-list.
package sqlparse

import (
	"regexp"
	"sort"
	"strings"
)

// tableRef matches FROM/JOIN/INTO/UPDATE followed by an identifier,
// optionally wrapped in backticks or double quotes.
var tableRef = regexp.MustCompile("(?i)\\b(?:from|join|into|update)\\s+[`\"]?(\\w+)[`\"]?")

// reservedKeywords are identifiers that can trail a trigger keyword
// without naming a table, e.g. "FROM (SELECT ...".
var reservedKeywords = map[string]struct{}{
	"SELECT": {}, "WHERE": {}, "GROUP": {}, "ORDER": {}, "HAVING": {},
	"LIMIT": {}, "OFFSET": {}, "AS": {}, "ON": {}, "AND": {}, "OR": {},
	"BY": {}, "ASC": {}, "DESC": {}, "DISTINCT": {}, "ALL": {}, "ANY": {},
	"SOME": {}, "EXISTS": {}, "IN": {}, "NOT": {}, "NULL": {}, "IS": {},
	"LIKE": {}, "BETWEEN": {}, "INNER": {}, "LEFT": {}, "RIGHT": {},
	"OUTER": {}, "FULL": {}, "CROSS": {}, "NATURAL": {},
}

// ExtractTables returns the set of lowercase table identifiers
// referenced by the query. It never fails; unparseable input yields an
// empty set.
func ExtractTables(sql string) map[string]struct{} {
	tables := make(map[string]struct{})
	for _, match := range tableRef.FindAllStringSubmatch(sql, -1) {
		name := strings.ToLower(match[1])
		if _, reserved := reservedKeywords[strings.ToUpper(name)]; reserved {
			continue
		}
		tables[name] = struct{}{}
	}
	return tables
}

// HasTables reports whether the query references at least one table.
func HasTables(sql string) bool {
	return len(ExtractTables(sql)) > 0
}

// Sorted returns the members of a table set as a sorted slice, for
// stable error messages and logging.
func Sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
