package pagination

import (
	"math"
	"net/http"
	"strconv"

	apperrors "github.com/shinshin4n4n/tube-review-sub001/pkg/errors"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 50
)

// Params is a 1-indexed page request.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

func DefaultParams() Params {
	return Params{Page: 1, PerPage: DefaultPerPage}
}

// Offset is the number of rows to skip for this page. It saturates at
// math.MaxInt for pages too large to address.
func (p Params) Offset() int {
	if p.Page <= 1 || p.PerPage <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PerPage {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PerPage
}

// PastEnd reports whether the page starts at or beyond total rows.
func (p Params) PastEnd(total int) bool {
	return p.Offset() >= total
}

// Validate rejects a page below 1 or a page size outside 1..MaxPerPage.
// Pages past the end of the data are valid and simply come back empty.
func (p Params) Validate() error {
	fields := map[string]string{}
	if p.Page < 1 {
		fields["page"] = "must be at least 1"
	}
	if p.PerPage < 1 || p.PerPage > MaxPerPage {
		fields["per_page"] = "must be between 1 and " + strconv.Itoa(MaxPerPage)
	}
	if len(fields) > 0 {
		return apperrors.Validation(fields)
	}
	return nil
}

// FromRequest reads page and per_page from the query string. Missing values
// take the defaults; malformed or out-of-range values are a validation error
// naming the offending parameter.
func FromRequest(r *http.Request) (Params, error) {
	p := DefaultParams()
	q := r.URL.Query()
	fields := map[string]string{}

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields["page"] = "must be an integer"
		} else {
			p.Page = n
		}
	}
	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields["per_page"] = "must be an integer"
		} else {
			p.PerPage = n
		}
	}
	if len(fields) > 0 {
		return p, apperrors.Validation(fields)
	}
	return p, p.Validate()
}
