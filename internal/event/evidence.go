package event

import "time"

// FetchStatus describes how fetching a link ended
type FetchStatus string

const (
	FetchOK        FetchStatus = "ok"
	FetchNotFound  FetchStatus = "not_found"
	FetchForbidden FetchStatus = "forbidden"
	FetchGone      FetchStatus = "gone"
	FetchTimeout   FetchStatus = "timeout"
	FetchError     FetchStatus = "error"
	FetchSkipped   FetchStatus = "skipped"
)

// LinkEvidence is what a fetched destination page says about an event.
type LinkEvidence struct {
	URL                   string      `json:"url"`
	FinalURL              string      `json:"final_url,omitempty"`
	FetchStatus           FetchStatus `json:"fetch_status"`
	StatusCode            int         `json:"status_code,omitempty"`
	Title                 string      `json:"title,omitempty"`
	Dates                 []string    `json:"dates,omitempty"` // canonical DD/MM/YYYY, in page order
	Time                  string      `json:"time,omitempty"`
	Artists               []string    `json:"artists,omitempty"`
	Price                 string      `json:"price,omitempty"`
	Description           string      `json:"description,omitempty"`
	HasPurchaseAffordance bool        `json:"has_purchase_affordance"`
	PurchaseLinks         []string    `json:"purchase_links,omitempty"`
	IsGenericPage         bool        `json:"is_generic_page"`
	Snippet               string      `json:"snippet,omitempty"`
	Error                 string      `json:"error,omitempty"`
	Attempts              int         `json:"attempts,omitempty"`
	FetchedAt             time.Time   `json:"fetched_at"`
}

// Fetched reports whether the page was retrieved and parsed.
func (e *LinkEvidence) Fetched() bool {
	return e != nil && e.FetchStatus == FetchOK
}

// Permanent reports whether the link failed with a status that retrying
// cannot fix (404, 403, 410).
func (e *LinkEvidence) Permanent() bool {
	if e == nil {
		return false
	}
	switch e.FetchStatus {
	case FetchNotFound, FetchForbidden, FetchGone:
		return true
	}
	return false
}

// HasDate reports whether date (any accepted literal) was found on the page.
func (e *LinkEvidence) HasDate(date string) bool {
	want, ok := NormalizeDate(date)
	if !ok || e == nil {
		return false
	}
	for _, d := range e.Dates {
		if d == want {
			return true
		}
	}
	return false
}
