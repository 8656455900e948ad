package arxiv

import (
	"errors"
	"fmt"
)

// ErrNoResults indicates an empty result set. The adapter itself never
// returns it; the search tool raises it when a query matches nothing.
var ErrNoResults = errors.New("no papers found")

// InvalidQueryError indicates a forbidden character in the normalized
// search query.
type InvalidQueryError struct {
	Char  string
	Query string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("cannot have character %q in query %q", e.Char, e.Query)
}

// UpstreamError indicates a non-success response from the arXiv API.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("bad response from arXiv API: status %d: %s", e.Status, e.Body)
}
