// Package selection parses the numbered-list shorthand used to pick events:
// "all", a single index, an inclusive range, or a comma separated mix of both.
package selection

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sandeepkv93/calbill/internal/model"
)

const All = "all"

// Parse resolves expr against a list of n candidates and returns the chosen
// 1-based indices in ascending order without duplicates.
func Parse(expr string, n int) ([]int, error) {
	raw := strings.TrimSpace(expr)
	if raw == "" {
		return nil, &model.SelectionError{Message: "selection is empty"}
	}
	if n < 0 {
		n = 0
	}
	if strings.EqualFold(raw, All) {
		out := make([]int, 0, n)
		for i := 1; i <= n; i++ {
			out = append(out, i)
		}
		return out, nil
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(raw, ",") {
		term := strings.TrimSpace(part)
		if term == "" {
			return nil, &model.SelectionError{Token: part, Message: "empty term"}
		}
		lo, hi, err := parseTerm(term, n)
		if err != nil {
			return nil, err
		}
		for i := lo; i <= hi; i++ {
			seen[i] = true
		}
	}

	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

func parseTerm(term string, n int) (int, int, error) {
	left, right, isRange := strings.Cut(term, "-")
	if !isRange {
		i, err := parseIndex(term, term, n)
		if err != nil {
			return 0, 0, err
		}
		return i, i, nil
	}
	if strings.TrimSpace(left) == "" || strings.TrimSpace(right) == "" {
		return 0, 0, &model.SelectionError{Token: term, Message: "range needs both bounds"}
	}
	lo, err := parseIndex(term, left, n)
	if err != nil {
		return 0, 0, err
	}
	hi, err := parseIndex(term, right, n)
	if err != nil {
		return 0, 0, err
	}
	if lo > hi {
		return 0, 0, &model.SelectionError{Token: term, Message: fmt.Sprintf("range start %d is after end %d", lo, hi)}
	}
	return lo, hi, nil
}

func parseIndex(term, value string, n int) (int, error) {
	v := strings.TrimSpace(value)
	i, err := strconv.Atoi(v)
	if err != nil || strings.HasPrefix(v, "+") {
		return 0, &model.SelectionError{Token: term, Message: fmt.Sprintf("%q is not a number", v)}
	}
	if i < 1 || i > n {
		return 0, &model.SelectionError{Token: term, Message: fmt.Sprintf("%d is out of range 1-%d", i, n)}
	}
	return i, nil
}

// Pick maps 1-based indices onto items. Indices must come from Parse with
// n == len(items).
func Pick[T any](indices []int, items []T) []T {
	out := make([]T, 0, len(indices))
	for _, i := range indices {
		if i >= 1 && i <= len(items) {
			out = append(out, items[i-1])
		}
	}
	return out
}
