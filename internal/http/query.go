package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

const defaultSort = "-createdAt"

var (
	categorySorts = []string{"createdAt", "name"}
	productSorts  = []string{"createdAt", "price", "name", "avgRating"}
	orderSorts    = []string{"createdAt", "totalAmount", "orderStatus"}
)

// parsePage reads page, limit and sort. sort is a field name from allowed,
// optionally prefixed with "-" for descending order.
func parsePage(r *http.Request, allowed []string) (domain.PageQuery, error) {
	q := domain.PageQuery{Page: 1, Limit: domain.DefaultPageLimit}
	values := r.URL.Query()

	if v := values.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 || page > domain.MaxPage {
			return q, domain.InvalidInput("page must be an integer between 1 and %d", domain.MaxPage)
		}
		q.Page = page
	}
	if v := values.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return q, domain.InvalidInput("limit must be a positive integer")
		}
		q.Limit = min(limit, domain.MaxPageLimit)
	}

	sort := values.Get("sort")
	if sort == "" {
		sort = defaultSort
	}
	field, desc := strings.CutPrefix(sort, "-")
	for _, a := range allowed {
		if a == field {
			q.SortField, q.SortDesc = field, desc
			return q, nil
		}
	}
	return q, domain.InvalidInput("cannot sort by %q", field)
}

// parseProductFilter reads categoryId and priceRange ("min-max", either side optional).
func parseProductFilter(r *http.Request) (domain.ProductFilter, error) {
	var f domain.ProductFilter
	values := r.URL.Query()

	if v := values.Get("categoryId"); v != "" {
		id, err := parseID(v, "categoryId")
		if err != nil {
			return f, err
		}
		f.Category = &id
	}

	if v := values.Get("priceRange"); v != "" {
		lo, hi, ok := strings.Cut(v, "-")
		if !ok {
			return f, domain.InvalidInput("priceRange must look like min-max")
		}
		var err error
		if f.MinPrice, err = parsePrice(lo); err != nil {
			return f, err
		}
		if f.MaxPrice, err = parsePrice(hi); err != nil {
			return f, err
		}
	}
	return f, nil
}

func parsePrice(s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return nil, domain.InvalidInput("invalid price %q", s)
	}
	return &d, nil
}
