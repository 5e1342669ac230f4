package discussion

import "github.com/sandevgo/agora/internal/core"

// ValidatePage enforces page >= 1 and 1 <= pageSize <= core.MaxPageSize.
func ValidatePage(page, pageSize int) error {
	if page < 1 {
		return core.InvalidArgument("paginate", "page must be >= 1, got %d", page)
	}
	if pageSize < 1 || pageSize > core.MaxPageSize {
		return core.InvalidArgument("paginate", "page_size must be within [1, %d], got %d", core.MaxPageSize, pageSize)
	}
	return nil
}

// Bounds returns the slice bounds of page within total items. Pages past the
// end are empty.
func Bounds(total, page, pageSize int) (start, end int) {
	if page-1 > total/pageSize {
		return total, total
	}
	start = (page - 1) * pageSize
	if start > total {
		start = total
	}
	end = start + pageSize
	if end > total {
		end = total
	}
	return start, end
}

func NewPagination(total, page, pageSize int) core.Pagination {
	return core.Pagination{
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
		HasMore:    hasMore(total, page, pageSize),
	}
}

// hasMore is page*pageSize < total without overflowing on large pages.
func hasMore(total, page, pageSize int) bool {
	if total < 1 {
		return false
	}
	return page <= (total-1)/pageSize
}
