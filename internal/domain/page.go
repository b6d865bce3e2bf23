package domain

type Pagination struct {
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalPages    int   `json:"totalPages"`
	TotalElements int64 `json:"totalElements"`
	IsLast        bool  `json:"isLast"`
}

// NewPagination builds the 1-based pagination block for a 0-based page index.
func NewPagination(zeroBasedPage, size int, totalElements int64) Pagination {
	totalPages := 0
	if size > 0 {
		totalPages = int((totalElements + int64(size) - 1) / int64(size))
	}

	return Pagination{
		Page:          max(zeroBasedPage+1, 1),
		Size:          size,
		TotalPages:    totalPages,
		TotalElements: totalElements,
		IsLast:        zeroBasedPage+1 >= totalPages,
	}
}

type PaginatedResult[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}
