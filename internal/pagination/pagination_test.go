package pagination

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strip(r Result) string {
	parts := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		parts = append(parts, it.String())
	}
	return strings.Join(parts, ",")
}

func TestPagesFirstPage(t *testing.T) {
	res, err := Pages(500, 20, 1)
	require.NoError(t, err)
	assert.Equal(t, 25, res.LastPage)
	assert.Equal(t, "1,2,...,24,25", strip(res))
}

func TestPagesStrips(t *testing.T) {
	testCases := []struct {
		name             string
		items, per, page int
		want             string
	}{
		{"middle", 500, 20, 13, "1,2,...,12,13,14,...,24,25"},
		{"near start", 500, 20, 4, "1,2,3,4,5,...,24,25"},
		{"near end", 500, 20, 23, "1,2,...,22,23,24,25"},
		{"last", 500, 20, 25, "1,2,...,24,25"},
		{"few pages", 50, 10, 3, "1,2,3,4,5"},
		{"single page", 5, 10, 1, "1"},
		{"empty", 0, 10, 1, "1"},
		{"page clamped high", 100, 10, 99, "1,2,...,9,10"},
		{"page clamped low", 100, 10, -3, "1,2,...,9,10"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Pages(tc.items, tc.per, tc.page)
			require.NoError(t, err)
			assert.Equal(t, tc.want, strip(res))
		})
	}
}

func TestPagesProperties(t *testing.T) {
	for items := 0; items <= 400; items += 7 {
		for _, per := range []int{1, 3, 10, 20} {
			last := LastPage(items, per)
			for page := 1; page <= last; page++ {
				res, err := Pages(items, per, page)
				require.NoError(t, err)

				var numbers []int
				prevEllipsis := false
				for _, it := range res.Items {
					if it.Ellipsis {
						assert.False(t, prevEllipsis, "adjacent ellipsis for %d/%d/%d", items, per, page)
						prevEllipsis = true
						continue
					}
					prevEllipsis = false
					numbers = append(numbers, it.Page)
				}

				for i := 1; i < len(numbers); i++ {
					assert.Less(t, numbers[i-1], numbers[i])
				}
				for _, must := range []int{1, 2, last - 1, last, page} {
					if must >= 1 && must <= last {
						assert.Contains(t, numbers, must)
					}
				}
				if page <= 2 || page >= last-1 {
					ellipses := len(res.Items) - len(numbers)
					assert.LessOrEqual(t, ellipses, 1)
				}
			}
		}
	}
}

func TestPagesLargeCounts(t *testing.T) {
	testCases := []struct {
		name             string
		items, per, page int
		wantLast         int
	}{
		{"max int items", math.MaxInt, 2, 1, math.MaxInt/2 + 1},
		{"max int single per page", math.MaxInt, 1, math.MaxInt, math.MaxInt},
		{"terabyte of pages", 1 << 40, 1, 1, 1 << 40},
		{"middle of huge strip", 1 << 40, 1, 1 << 39, 1 << 40},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			done := make(chan struct{})
			var res Result
			var err error
			go func() {
				defer close(done)
				res, err = Pages(tc.items, tc.per, tc.page)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("Pages did not return")
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantLast, res.LastPage)
			assert.Equal(t, clamp(tc.page, 1, tc.wantLast), res.Page)
			assert.LessOrEqual(t, len(res.Items), 2*edge+5)

			first, last := res.Items[0], res.Items[len(res.Items)-1]
			assert.Equal(t, 1, first.Page)
			assert.Equal(t, tc.wantLast, last.Page)
			assert.Contains(t, strip(res), strconv.Itoa(res.Page))
		})
	}

	res, err := Pages(math.MaxInt, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, "1,2,...,"+strconv.Itoa(math.MaxInt/2)+","+strconv.Itoa(math.MaxInt/2+1), strip(res))
}

func TestLastPage(t *testing.T) {
	assert.Equal(t, 1, LastPage(0, 10))
	assert.Equal(t, 1, LastPage(10, 10))
	assert.Equal(t, 2, LastPage(11, 10))
	assert.Equal(t, math.MaxInt, LastPage(math.MaxInt, 1))
	assert.Equal(t, 1, LastPage(math.MaxInt, math.MaxInt))
	assert.Equal(t, 1, LastPage(5, 0))
}

func TestPagesRejectsBadInput(t *testing.T) {
	_, err := Pages(10, 0, 1)
	assert.Error(t, err)

	_, err = Pages(-1, 10, 1)
	assert.Error(t, err)
}

func TestItemJSON(t *testing.T) {
	res, err := Pages(500, 20, 1)
	require.NoError(t, err)

	out, err := json.Marshal(res.Items)
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2,"...",24,25]`, string(out))

	var back []Item
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, res.Items, back)

	var bad Item
	assert.Error(t, json.Unmarshal([]byte(`"x"`), &bad))
}

func TestWindow(t *testing.T) {
	offset, limit := Window(3, 20)
	assert.Equal(t, 40, offset)
	assert.Equal(t, 20, limit)

	offset, limit = Window(0, 0)
	assert.Equal(t, 0, offset)
	assert.Equal(t, 1, limit)
}

func TestParseSort(t *testing.T) {
	s, err := ParseSort("desc(TradeDate)")
	require.NoError(t, err)
	assert.Equal(t, Sort{Field: "TradeDate", Desc: true}, s)
	assert.Equal(t, "desc(TradeDate)", s.String())

	s, err = ParseSort("ASC(Price)")
	require.NoError(t, err)
	assert.Equal(t, Sort{Field: "Price"}, s)

	s, err = ParseSort("Price")
	require.NoError(t, err)
	assert.Equal(t, "asc(Price)", s.String())

	s, err = ParseSort("")
	require.NoError(t, err)
	assert.Equal(t, "", s.String())

	_, err = ParseSort("drop table;")
	assert.Error(t, err)
}
