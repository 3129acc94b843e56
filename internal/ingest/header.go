package ingest

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/theduckverse/refundhunter-backend/internal/rules"
)

// Mapping binds column indexes to canonical fields. Unbound columns are absent.
type Mapping map[int]rules.Field

// Column returns the index bound to f, or -1.
func (m Mapping) Column(f rules.Field) int {
	for idx, field := range m {
		if field == f {
			return idx
		}
	}
	return -1
}

// Has reports whether f was bound to any column.
func (m Mapping) Has(f rules.Field) bool {
	return m.Column(f) >= 0
}

// HeaderResolver maps arbitrary header rows onto canonical fields using a
// priority-ordered alias table and case-insensitive substring containment.
type HeaderResolver struct {
	table rules.AliasTable
}

// NewHeaderResolver folds the alias table once; the resolver is immutable afterwards.
func NewHeaderResolver(table rules.AliasTable) *HeaderResolver {
	if len(table) == 0 {
		table = rules.DefaultAliases()
	}
	folded := make(rules.AliasTable, 0, len(table))
	for _, fa := range table {
		aliases := make([]string, 0, len(fa.Aliases))
		for _, a := range fa.Aliases {
			if a = normalizeHeader(a); a != "" {
				aliases = append(aliases, a)
			}
		}
		folded = append(folded, rules.FieldAliases{Field: fa.Field, Aliases: aliases})
	}
	return &HeaderResolver{table: folded}
}

// Resolve binds, for each canonical field in table order, the first header whose
// normalized text contains one of the field's aliases. A header is claimed by at
// most one field. An empty header row yields an empty mapping.
func (h *HeaderResolver) Resolve(header []string) Mapping {
	out := Mapping{}
	if len(header) == 0 {
		return out
	}
	normalized := make([]string, len(header))
	for i, cell := range header {
		normalized[i] = normalizeHeader(cell)
	}

	claimed := make(map[int]bool, len(header))
	for _, fa := range h.table {
		for idx, name := range normalized {
			if claimed[idx] || name == "" {
				continue
			}
			if containsAny(name, fa.Aliases) {
				out[idx] = fa.Field
				claimed[idx] = true
				break
			}
		}
	}
	return out
}

// ResolveLine splits a raw header line on delim and resolves it.
func (h *HeaderResolver) ResolveLine(line string, delim rune) Mapping {
	if strings.TrimSpace(line) == "" {
		return Mapping{}
	}
	return h.Resolve(splitLine(line, delim))
}

// DetectDelimiter picks tab when the text contains one anywhere, else comma.
func DetectDelimiter(text string) rune {
	if strings.ContainsRune(text, '\t') {
		return '\t'
	}
	return ','
}

func normalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = cleanCell(s)
	return cases.Fold().String(s)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
