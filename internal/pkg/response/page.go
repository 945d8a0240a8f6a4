package response

// PageResponse wraps one page of a list endpoint.
type PageResponse[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPageResponse converts each domain item with toResponse. Items are never
// encoded as null.
func NewPageResponse[S, T any](items []S, toResponse func(S) T, page, pageSize, total int) PageResponse[T] {
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = toResponse(item)
	}

	var pages int
	if pageSize > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	return PageResponse[T]{
		Items:      out,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: pages,
	}
}
