package detection

import (
	"sort"
	"strings"
)

// LabelEncoder maps category strings to 1..n. Unseen values map to 0.
type LabelEncoder struct {
	Classes []string `json:"classes"`
	index   map[string]int
}

func NewLabelEncoder(values []string) *LabelEncoder {
	seen := map[string]struct{}{}
	for _, v := range values {
		seen[normalizeCategory(v)] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Strings(classes)

	e := &LabelEncoder{Classes: classes}
	e.buildIndex()
	return e
}

func (e *LabelEncoder) buildIndex() {
	e.index = make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		e.index[c] = i + 1
	}
}

func (e *LabelEncoder) Transform(v string) float64 {
	if e == nil {
		return 0
	}
	if e.index == nil {
		e.buildIndex()
	}
	return float64(e.index[normalizeCategory(v)])
}

func normalizeCategory(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
