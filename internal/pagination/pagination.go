// Package pagination computes the page strip shown under trade history and
// the windows used to query it.
package pagination

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Ellipsis is the marker rendered in place of a hidden run of pages.
const Ellipsis = "..."

// edge is how many pages are always shown at each end of the strip.
const edge = 2

// Item is either a page number or an ellipsis marker.
type Item struct {
	Page     int
	Ellipsis bool
}

func (i Item) String() string {
	if i.Ellipsis {
		return Ellipsis
	}
	return strconv.Itoa(i.Page)
}

func (i Item) MarshalJSON() ([]byte, error) {
	if i.Ellipsis {
		return json.Marshal(Ellipsis)
	}
	return json.Marshal(i.Page)
}

func (i *Item) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != Ellipsis {
			return fmt.Errorf("pagination: unexpected marker %q", s)
		}
		*i = Item{Ellipsis: true}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*i = Item{Page: n}
	return nil
}

type Result struct {
	Page     int    `json:"page"`
	PerPage  int    `json:"perPage"`
	LastPage int    `json:"lastPage"`
	Items    []Item `json:"pages"`
}

// LastPage is the number of pages needed for itemsCount, never below one.
func LastPage(itemsCount, perPage int) int {
	if perPage <= 0 || itemsCount <= 0 {
		return 1
	}
	last := itemsCount / perPage
	if itemsCount%perPage != 0 {
		last++
	}
	return last
}

// Pages builds the visible page strip. The first and last two pages are
// always present, pages closer than two to the current one are shown, and
// every hidden run collapses into a single ellipsis.
func Pages(itemsCount, perPage, currentPage int) (Result, error) {
	if perPage <= 0 {
		return Result{}, fmt.Errorf("pagination: perPage must be positive, got %d", perPage)
	}
	if itemsCount < 0 {
		return Result{}, fmt.Errorf("pagination: itemsCount cannot be negative, got %d", itemsCount)
	}

	last := LastPage(itemsCount, perPage)
	current := clamp(currentPage, 1, last)

	items := make([]Item, 0, 2*edge+5)
	prev := 0
	for _, page := range candidates(current, last) {
		if page-prev > 1 {
			items = append(items, Item{Ellipsis: true})
		}
		items = append(items, Item{Page: page})
		prev = page
	}

	return Result{
		Page:     current,
		PerPage:  perPage,
		LastPage: last,
		Items:    items,
	}, nil
}

// candidates lists the visible pages in ascending order without
// duplicates. Only the edges and the neighbours of current are
// considered, so the cost does not depend on last.
func candidates(current, last int) []int {
	raw := make([]int, 0, 2*edge+3)
	for p := 1; p <= edge; p++ {
		raw = append(raw, p)
	}
	raw = append(raw, current-1, current, current+1)
	for p := last - edge + 1; p <= last; p++ {
		raw = append(raw, p)
	}
	slices.Sort(raw)

	out := raw[:0]
	for _, p := range raw {
		if p < 1 || p > last {
			continue
		}
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Window converts a 1-based page into an offset/limit pair.
func Window(page, perPage int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}
	return (page - 1) * perPage, perPage
}

// Sort is a parsed "asc(Field)" / "desc(Field)" expression.
type Sort struct {
	Field string
	Desc  bool
}

func (s Sort) String() string {
	if s.Field == "" {
		return ""
	}
	if s.Desc {
		return "desc(" + s.Field + ")"
	}
	return "asc(" + s.Field + ")"
}

var (
	sortExpr  = regexp.MustCompile(`(?i)^(asc|desc)\(([a-z][a-z0-9_]*)\)$`)
	fieldExpr = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
)

// ParseSort accepts "desc(TradeDate)", "asc(Price)" or a bare field name
// (ascending). An empty string yields the zero Sort.
func ParseSort(raw string) (Sort, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Sort{}, nil
	}
	if m := sortExpr.FindStringSubmatch(raw); m != nil {
		return Sort{Field: m[2], Desc: strings.EqualFold(m[1], "desc")}, nil
	}
	if fieldExpr.MatchString(raw) {
		return Sort{Field: raw}, nil
	}
	return Sort{}, fmt.Errorf("pagination: invalid sort %q", raw)
}
