package domain

import "strings"

const (
	MinResultCount     = 5
	MaxResultCount     = 20
	DefaultResultCount = 15
)

// SearchParameters controls retrieval for the next exchange. An empty
// LenderFilter means every lender is searched.
type SearchParameters struct {
	LenderFilter string
	ResultCount  int
}

// Normalize clamps ResultCount into [MinResultCount, MaxResultCount] and maps
// the AllLenders sentinel to "no filter".
func (p SearchParameters) Normalize() SearchParameters {
	p.LenderFilter = strings.TrimSpace(p.LenderFilter)
	if IsAllLenders(p.LenderFilter) {
		p.LenderFilter = ""
	}
	p.ResultCount = ClampResultCount(p.ResultCount)
	return p
}

// HasFilter reports whether retrieval is restricted to one lender.
func (p SearchParameters) HasFilter() bool {
	return p.LenderFilter != ""
}

func ClampResultCount(n int) int {
	if n < MinResultCount {
		return MinResultCount
	}
	if n > MaxResultCount {
		return MaxResultCount
	}
	return n
}

// ResultMetadata records where a supporting passage came from.
type ResultMetadata struct {
	LenderName      string `json:"lender_name"`
	CriteriaSection string `json:"criteria_section"`
	SourceFilename  string `json:"filename"`
	ChunkIndex      *int   `json:"chunk_index,omitempty"`
}

// SupportingResult is a retrieved passage shown alongside an answer.
type SupportingResult struct {
	Text           string         `json:"text"`
	Metadata       ResultMetadata `json:"metadata"`
	RelevanceScore *float64       `json:"score,omitempty"`
}
