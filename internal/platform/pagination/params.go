package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid page_size")
	ErrInvalidPageToken = errors.New("pagination: invalid page_token")
)

// FromRequest reads page_size and page_token (camelCase spellings are accepted too).
func FromRequest(r *http.Request) (domain.Pagination, error) {
	if r == nil {
		return domain.Pagination{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query())
}

// Parse validates the query values without decoding the token; Resolve does that.
func Parse(values url.Values) (domain.Pagination, error) {
	pager := domain.Pagination{PageSize: DefaultPageSize}
	if raw := first(values, "page_size", "pageSize"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			return domain.Pagination{}, fmt.Errorf("%w: %q", ErrInvalidPageSize, raw)
		}
		pager.PageSize = min(size, MaxPageSize)
	}
	pager.PageToken = first(values, "page_token", "pageToken")
	if _, err := DecodeToken(pager.PageToken); err != nil {
		return domain.Pagination{}, err
	}
	return pager, nil
}

// Resolve clamps the page size and decodes the token for a repository query.
func Resolve(pager domain.Pagination) (int, Cursor, error) {
	size := pager.PageSize
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	cursor, err := DecodeToken(pager.PageToken)
	if err != nil {
		return 0, Cursor{}, err
	}
	return size, cursor, nil
}

func first(values url.Values, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(values.Get(key)); v != "" {
			return v
		}
	}
	return ""
}
