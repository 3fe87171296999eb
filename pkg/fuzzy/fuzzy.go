// Package fuzzy ranks short records (company and role names) against a
// typed query with typo tolerance.
package fuzzy

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Field is one searchable value with its weight in the final score
type Field struct {
	Text   string
	Weight float64
}

// Distance is the Levenshtein edit distance between a and b after folding
func Distance(a, b string) int {
	return levenshtein([]rune(Fold(a)), []rune(Fold(b)))
}

func levenshtein(r1, r2 []rune) int {
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	cur := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(r1); i++ {
		cur[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(r2)]
}

// Threshold is the typo budget for a query of the given length
func Threshold(query string) int {
	n := len([]rune(query))
	switch {
	case n <= 3:
		return 0
	case n <= 5:
		return 1
	case n >= 9:
		return 3
	default:
		return 2
	}
}

// Match reports whether query matches text as a substring, a word prefix or
// a word within the typo budget.
func Match(query, text string) bool {
	return score(Fold(query), Fold(text)) > 0
}

// Score weighs each field's match quality. Zero means no match.
func Score(query string, fields ...Field) float64 {
	q := Fold(query)
	if q == "" {
		return 0
	}
	total := 0.0
	for _, f := range fields {
		total += score(q, Fold(f.Text)) * f.Weight
	}
	return total
}

func score(q, text string) float64 {
	if q == "" || text == "" {
		return 0
	}
	if text == q {
		return 100
	}
	best := 0.0
	if strings.Contains(text, q) {
		best = 70
	}
	budget := Threshold(q)
	qr := []rune(q)
	for _, word := range strings.Fields(text) {
		if word == q {
			return 90
		}
		if strings.HasPrefix(word, q) && best < 60 {
			best = 60
		}
		if d := levenshtein(qr, []rune(word)); d <= budget {
			if s := 50 - float64(d)*12; s > best {
				best = s
			}
		}
	}
	return best
}

var foldChain = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases, strips diacritics and collapses whitespace
func Fold(s string) string {
	out, _, err := transform.String(foldChain, s)
	if err != nil {
		out = s
	}
	out = strings.ReplaceAll(out, "đ", "d")
	out = strings.ReplaceAll(out, "Đ", "D")
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// Ranked pairs an item index with its score
type Ranked struct {
	Index int
	Score float64
}

// Rank scores n items through fields and returns matches, best first
func Rank(query string, n int, fields func(i int) []Field) []Ranked {
	var out []Ranked
	for i := 0; i < n; i++ {
		if s := Score(query, fields(i)...); s > 0 {
			out = append(out, Ranked{Index: i, Score: s})
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out
}
