// Package selection narrows a raw record set down to the records a user
// picked with attribute::value selector tokens.
package selection

import (
	"sort"
	"strings"

	"productimport/internal/catalog"
	"productimport/internal/rules"
)

const separator = "::"

type Token struct {
	Key   string
	Value string
}

// ParseToken splits raw on the first "::". Both halves must be non-empty.
func ParseToken(raw string) (Token, bool) {
	key, value, ok := strings.Cut(raw, separator)
	if !ok {
		return Token{}, false
	}
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if key == "" || value == "" {
		return Token{}, false
	}
	return Token{Key: key, Value: value}, true
}

// ParseTokens drops malformed tokens silently.
func ParseTokens(raw []string) []Token {
	tokens := make([]Token, 0, len(raw))
	for _, r := range raw {
		if t, ok := ParseToken(r); ok {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// Match reports whether a record value satisfies a token value: equal,
// containing, or contained, compared trimmed and case-insensitive.
func Match(recordValue, tokenValue string) bool {
	got := strings.ToLower(strings.TrimSpace(recordValue))
	want := strings.ToLower(strings.TrimSpace(tokenValue))
	if got == "" || want == "" {
		return false
	}
	return got == want || strings.Contains(got, want) || strings.Contains(want, got)
}

// Selection is the outcome of filtering a record set. Indices are in
// original record order; Matched holds, per selected index, the token
// values that selected it.
type Selection struct {
	All     bool
	Indices []int
	Matched map[int][]string
}

// Includes reports whether record i was selected.
func (s Selection) Includes(i int) bool {
	if s.All {
		return true
	}
	_, ok := s.Matched[i]
	return ok
}

// SelectRows filters CSV rows.
func SelectRows(rows []map[string]string, tokens []Token) Selection {
	return selectRecords(len(rows), tokens, func(i int, key string) (string, bool) {
		v, ok := rows[i][key]
		return v, ok
	})
}

// SelectItems filters decoded API items. Nested values never match.
func SelectItems(items []map[string]interface{}, tokens []Token) Selection {
	return selectRecords(len(items), tokens, func(i int, key string) (string, bool) {
		v, ok := items[i][key]
		if !ok {
			return "", false
		}
		return rules.Stringify(v)
	})
}

func selectRecords(n int, tokens []Token, valueAt func(i int, key string) (string, bool)) Selection {
	if len(tokens) == 0 {
		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}
		return Selection{All: true, Indices: indices}
	}

	matched := make(map[int][]string)
	for _, t := range tokens {
		for i := 0; i < n; i++ {
			v, ok := valueAt(i, t.Key)
			if !ok || !Match(v, t.Value) {
				continue
			}
			if !contains(matched[i], t.Value) {
				matched[i] = append(matched[i], t.Value)
			}
		}
	}

	indices := make([]int, 0, len(matched))
	for i := range matched {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return Selection{Indices: indices, Matched: matched}
}

// AppendTags adds the matched selector values to p's tags and caps the
// result. p is not modified.
func AppendTags(p catalog.Product, values []string) catalog.Product {
	out := p.Clone()
	if len(values) == 0 {
		return out
	}
	out.Tags = catalog.CapTags(append(out.Tags, values...))
	return out
}

// DistinctValues lists, per column, the distinct non-empty values in
// first-seen order. Used to offer selector tokens for an uploaded file.
func DistinctValues(headers []string, rows []map[string]string, limit int) map[string][]string {
	out := make(map[string][]string, len(headers))
	for _, h := range headers {
		seen := make(map[string]struct{})
		values := []string{}
		for _, row := range rows {
			v := strings.TrimSpace(row[h])
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			values = append(values, v)
			if limit > 0 && len(values) >= limit {
				break
			}
		}
		out[h] = values
	}
	return out
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
