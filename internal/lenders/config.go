package lenders

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"mortgage-criteria-chat/internal/domain"
)

// Config is a decoded lender configuration document. It is either a FlatList
// or a CategoryMap.
type Config interface {
	// Names returns lender names in document order, before normalization.
	Names() []string
	kind() string
}

// FlatList is the current /lenders shape.
type FlatList struct {
	TotalLenders int      `json:"total_lenders"`
	TotalChunks  int      `json:"total_chunks"`
	Lenders      []string `json:"lenders"`
	LastUpdated  string   `json:"last_updated"`
}

func (f FlatList) Names() []string { return append([]string(nil), f.Lenders...) }
func (FlatList) kind() string      { return "flat_list" }

// CategoryMap is the legacy lender_config.json shape, grouping lenders by
// category.
type CategoryMap struct {
	Categories map[string][]string
}

// categoryOrder is the order the legacy categories are flattened in. Unknown
// categories follow, sorted by key.
var categoryOrder = []string{"major_banks", "building_societies", "specialist_lenders", "other_banks"}

func (c CategoryMap) Names() []string {
	var out []string
	seen := make(map[string]bool, len(c.Categories))
	for _, key := range categoryOrder {
		seen[key] = true
		out = append(out, c.Categories[key]...)
	}
	extra := make([]string, 0)
	for key := range c.Categories {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		out = append(out, c.Categories[key]...)
	}
	return out
}

func (CategoryMap) kind() string { return "category_map" }

var errUnrecognizedShape = errors.New("lenders: configuration has neither lenders nor lender_categories")

// ParseConfig decodes raw into a FlatList or a CategoryMap. When both keys are
// present the flat list wins.
func ParseConfig(raw []byte) (Config, error) {
	var probe struct {
		Lenders          json.RawMessage `json:"lenders"`
		LenderCategories json.RawMessage `json:"lender_categories"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("lenders: decode configuration: %w", err)
	}

	switch {
	case isPresent(probe.Lenders):
		var flat FlatList
		if err := json.Unmarshal(raw, &flat); err != nil {
			return nil, fmt.Errorf("lenders: decode flat list: %w", err)
		}
		return flat, nil
	case isPresent(probe.LenderCategories):
		var categories map[string][]string
		if err := json.Unmarshal(probe.LenderCategories, &categories); err != nil {
			return nil, fmt.Errorf("lenders: decode lender categories: %w", err)
		}
		return CategoryMap{Categories: categories}, nil
	default:
		return nil, errUnrecognizedShape
	}
}

func isPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// filenameSuffixes are stripped from lender names, longest first.
var filenameSuffixes = []string{"-.txt", "-.pdf", ".txt", ".pdf"}

// NormalizeName trims a lender name, strips known filename suffixes and
// collapses internal whitespace.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	for _, suffix := range filenameSuffixes {
		if len(name) >= len(suffix) && strings.EqualFold(name[len(name)-len(suffix):], suffix) {
			name = name[:len(name)-len(suffix)]
			break
		}
	}
	return strings.Join(strings.Fields(name), " ")
}

// Canonicalize normalizes names, drops empties and the AllLenders sentinel,
// removes case-insensitive duplicates (first spelling wins) and sorts
// case-insensitively.
func Canonicalize(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = NormalizeName(n)
		if n == "" || domain.IsAllLenders(n) {
			continue
		}
		key := strings.ToLower(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}
