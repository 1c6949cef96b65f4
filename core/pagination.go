package core

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
	maxPage      = 100
)

// OrderBy is a sort direction for list endpoints.
type OrderBy string

const (
	OrderAsc  OrderBy = "asc"
	OrderDesc OrderBy = "desc"
)

// ParseOrderBy parses "asc"/"desc" case-insensitively, defaulting to desc.
func ParseOrderBy(s string) (OrderBy, error) {
	switch strings.ToLower(s) {
	case "", "desc":
		return OrderDesc, nil
	case "asc":
		return OrderAsc, nil
	default:
		return "", fmt.Errorf("invalid orderby: possible values are `asc` or `desc`")
	}
}

// Reverse flips the sort direction.
func (o OrderBy) Reverse() OrderBy {
	if o == OrderAsc {
		return OrderDesc
	}
	return OrderAsc
}

// PageParams is the raw, unvalidated pagination input from a request's
// query string.
type PageParams struct {
	Order  OrderBy
	Limit  *uint32
	Offset *uint32
	Page   *uint32
}

// ParseUintPtr parses an optional numeric query parameter, returning nil for
// an empty string.
func ParseUintPtr(s string) (*uint32, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return nil, err
	}
	u := uint32(v)
	return &u, nil
}

// LimitOffset resolves the effective (limit, offset) pair, applying the
// defaulting, clamping, and "offset overrides page" rules verbatim from the
// original PageParams::limit_offset.
func (p PageParams) LimitOffset() (limit, offset uint32, err error) {
	if p.Limit == nil {
		return defaultLimit, 0, nil
	}

	limit = *p.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		return 0, 0, fmt.Errorf("limit(%d) more than max allowed(%d)", limit, maxLimit)
	}

	if p.Offset != nil {
		offset = *p.Offset
	}
	if offset > maxPage*limit {
		return 0, 0, fmt.Errorf("offset(%d) more than max allowed(%d)", offset, maxPage*limit)
	}
	if offset > 0 {
		return limit, offset, nil
	}

	var page uint32
	if p.Page != nil {
		page = *p.Page
	}
	if page > maxPage {
		return 0, 0, fmt.Errorf("page(%d) more than max allowed(%d)", page, maxPage)
	}

	return limit, page * limit, nil
}

// ListResponseMeta is the pagination metadata block of a list response:
// {meta: {page, limit, offset, has_more, total_records}}.
type ListResponseMeta struct {
	Page         uint32 `json:"page"`
	Limit        uint32 `json:"limit"`
	Offset       uint32 `json:"offset"`
	HasMore      bool   `json:"has_more"`
	TotalRecords uint64 `json:"total_records"`
}

// NewListResponseMeta derives page from offset/limit rather than tracking it
// independently, exactly as ListResponseMeta::new does.
func NewListResponseMeta(limit, offset uint32, total uint64) ListResponseMeta {
	divisor := limit
	if divisor == 0 {
		divisor = 1
	}
	return ListResponseMeta{
		Page:         offset / divisor,
		Limit:        limit,
		Offset:       offset,
		HasMore:      uint64(offset+limit) < total,
		TotalRecords: total,
	}
}

// ListResult is the generic {meta, records} envelope for list endpoints.
type ListResult[T any] struct {
	Meta    *ListResponseMeta `json:"meta,omitempty"`
	Records []T               `json:"records"`
}
