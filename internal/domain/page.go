package domain

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
	MaxPage          = 1_000_000
)

// PageQuery is a validated page request. SortField is already whitelisted.
type PageQuery struct {
	Page      int
	Limit     int
	SortField string
	SortDesc  bool
}

func (q PageQuery) Skip() int64 {
	return int64(q.Page-1) * int64(q.Limit)
}

type PageResult[T any] struct {
	Items       []T   `json:"items"`
	Total       int64 `json:"total"`
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
}

func NewPageResult[T any](items []T, total int64, q PageQuery) *PageResult[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if q.Limit > 0 {
		pages = int((total + int64(q.Limit) - 1) / int64(q.Limit))
	}
	return &PageResult[T]{Items: items, Total: total, CurrentPage: q.Page, TotalPages: pages}
}
