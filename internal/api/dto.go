package api

import (
	"encoding/json"

	"github.com/pAIrprogio/synscript-sub000/internal/entryservice"
	"github.com/pAIrprogio/synscript-sub000/internal/index"
	"github.com/pAIrprogio/synscript-sub000/internal/mddb"
)

// CreateEntryRequest is the request body for creating an entry file.
type CreateEntryRequest struct {
	Path    string `json:"path" example:"buttons/variants.md" validate:"required"`
	Content string `json:"content" example:"---\nquery: true\n---\nBody" validate:"required"`
}

// MatchRequest is the request body for matching one input.
type MatchRequest struct {
	Input     json.RawMessage `json:"input" swaggertype:"object" validate:"required"`
	SkipEmpty bool            `json:"skip_empty" example:"true"`
}

// MatchAnyRequest is the request body for matching several inputs.
type MatchAnyRequest struct {
	Inputs    []json.RawMessage `json:"inputs" swaggertype:"array,object" validate:"required"`
	SkipEmpty bool              `json:"skip_empty" example:"false"`
}

// Entry is the full entry response type (aliased from the domain layer).
type Entry = mddb.Entry

// EntryDetail is a single entry with its ancestor ids (aliased from the domain layer).
type EntryDetail = entryservice.EntryDetail

// EntryListItem is a lightweight item in a list response (aliased from the domain layer).
type EntryListItem = entryservice.EntryListItem

// RefreshResult summarizes a refresh (aliased from the domain layer).
type RefreshResult = entryservice.RefreshResult

// SearchResult is a single search hit (aliased from the index layer).
type SearchResult = index.SearchResult

// EntryListResponse wraps paginated entry listings.
type EntryListResponse struct {
	Entries []EntryListItem `json:"entries" validate:"required"`
	Total   int             `json:"total" example:"42" validate:"required"`
}

// MatchResponse wraps matched entries.
type MatchResponse struct {
	Entries []*Entry `json:"entries" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}
