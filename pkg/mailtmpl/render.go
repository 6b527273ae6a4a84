// Package mailtmpl substitutes {Column} placeholders with recipient values.
//
// It is plain text substitution, not a template language: a placeholder is the complete
// token "{" + column name + "}", placeholders naming unknown columns are kept as they are,
// and null values render as an empty string.
package mailtmpl

import (
	"sort"
	"strings"

	"github.com/yusufsyaifudin/kirimsurat/pkg/recipient"
)

// Placeholder returns the token for column.
func Placeholder(column string) string {
	return "{" + column + "}"
}

// Render replaces every placeholder of the row's schema in tpl.
func Render(tpl string, row recipient.Row) string {
	if tpl == "" || !strings.Contains(tpl, "{") {
		return tpl
	}

	return NewRenderer(row).Replace(tpl)
}

// NewRenderer prepares one replacer for a row so subject and body share the same substitution.
func NewRenderer(row recipient.Row) *strings.Replacer {
	columns := row.Columns()

	// longest token first, so a token that prefixes another never wins over it
	sort.SliceStable(columns, func(i, j int) bool {
		return len(columns[i]) > len(columns[j])
	})

	pairs := make([]string, 0, len(columns)*2)
	for _, col := range columns {
		pairs = append(pairs, Placeholder(col), row.String(col))
	}

	return strings.NewReplacer(pairs...)
}

// Unknown lists placeholders in tpl that do not match any column, in order of appearance.
func Unknown(tpl string, columns []string) []string {
	known := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		known[col] = struct{}{}
	}

	out := make([]string, 0)
	seen := make(map[string]struct{})
	rest := tpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}

		end := strings.IndexByte(rest[open+1:], '}')
		if end < 0 {
			break
		}

		name := rest[open+1 : open+1+end]
		rest = rest[open+1+end+1:]
		if name == "" {
			continue
		}

		if _, ok := known[name]; ok {
			continue
		}

		if _, dup := seen[name]; dup {
			continue
		}

		seen[name] = struct{}{}
		out = append(out, Placeholder(name))
	}

	return out
}
