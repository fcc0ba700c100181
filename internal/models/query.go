package models

import (
	"fmt"
	"strings"
)

// QueryRequest is a question asked against the caller's documents.
type QueryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// Validate trims the query, rejects blank ones and clamps K into [1, maxK],
// using defaultK when K is unset.
func (q *QueryRequest) Validate(defaultK, maxK int) error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.K <= 0 {
		q.K = defaultK
	}
	if maxK > 0 && q.K > maxK {
		q.K = maxK
	}
	if q.K <= 0 {
		q.K = 1
	}
	return nil
}

// Source is one retrieved document returned alongside an answer.
type Source struct {
	ID         int     `json:"id"`
	DocumentID int64   `json:"document_id"`
	Title      string  `json:"title,omitempty"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// QueryResponse is the answer to a QueryRequest.
type QueryResponse struct {
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
	QueryTime int64    `json:"query_time_ms"`
	Query     string   `json:"query"`
}
