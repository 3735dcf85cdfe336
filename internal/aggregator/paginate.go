package aggregator

// Paginate returns the pageIndex-th (1-based) slice of pageSize items.
// Pages outside the result, including pageIndex < 1 and pageSize <= 0, are
// empty but still report TotalCount.
func Paginate(result Result, pageIndex, pageSize int) Page {
	total := len(result.Items)
	page := Page{
		Items:      []VideoItem{},
		PageIndex:  pageIndex,
		PageSize:   pageSize,
		TotalCount: total,
	}
	if pageIndex < 1 || pageSize <= 0 {
		return page
	}

	start := clamp((pageIndex-1)*pageSize, total)
	end := clamp(start+pageSize, total)

	page.Items = make([]VideoItem, end-start)
	copy(page.Items, result.Items[start:end])
	return page
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
