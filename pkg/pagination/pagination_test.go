package pagination

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/shinshin4n4n/tube-review-sub001/pkg/errors"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPerPage, p.PerPage)
	assert.Equal(t, 0, p.Offset())
}

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		want       Params
		badField   string
		wantOffset int
	}{
		{name: "defaults", query: "", want: Params{1, 20}},
		{name: "custom", query: "page=3&per_page=50", want: Params{3, 50}, wantOffset: 100},
		{name: "page past end is allowed", query: "page=999&per_page=20", want: Params{999, 20}, wantOffset: 19960},
		{name: "largest page is allowed", query: "page=" + strconv.Itoa(math.MaxInt) + "&per_page=20", want: Params{math.MaxInt, 20}, wantOffset: math.MaxInt},
		{name: "per_page max+1", query: "per_page=51", badField: "per_page"},
		{name: "per_page zero", query: "per_page=0", badField: "per_page"},
		{name: "page zero", query: "page=0", badField: "page"},
		{name: "page negative", query: "page=-2", badField: "page"},
		{name: "page not a number", query: "page=abc", badField: "page"},
		{name: "per_page not a number", query: "per_page=ten", badField: "per_page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/reviews/recent?"+tt.query, nil)
			p, err := FromRequest(req)
			if tt.badField != "" {
				var appErr *apperrors.AppError
				require.True(t, errors.As(err, &appErr))
				assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
				assert.Contains(t, appErr.Fields, tt.badField)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
			assert.Equal(t, tt.wantOffset, p.Offset())
		})
	}
}

func TestParams_ValidateReportsBothFields(t *testing.T) {
	err := Params{Page: 0, PerPage: 100}.Validate()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Len(t, appErr.Fields, 2)
}

func TestParams_OffsetSaturates(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		want int
	}{
		{"first page", Params{Page: 1, PerPage: 50}, 0},
		{"last addressable page", Params{Page: math.MaxInt/50 + 1, PerPage: 50}, (math.MaxInt / 50) * 50},
		{"one past addressable", Params{Page: math.MaxInt/50 + 2, PerPage: 50}, math.MaxInt},
		{"max page", Params{Page: math.MaxInt, PerPage: 1}, math.MaxInt - 1},
		{"max page wide", Params{Page: math.MaxInt, PerPage: MaxPerPage}, math.MaxInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Offset())
			assert.GreaterOrEqual(t, tt.p.Offset(), 0)
		})
	}
}

func TestParams_PastEnd(t *testing.T) {
	assert.False(t, Params{Page: 1, PerPage: 20}.PastEnd(1))
	assert.True(t, Params{Page: 1, PerPage: 20}.PastEnd(0))
	assert.True(t, Params{Page: 2, PerPage: 20}.PastEnd(20))
	assert.True(t, Params{Page: math.MaxInt, PerPage: 20}.PastEnd(math.MaxInt - 1))
}
