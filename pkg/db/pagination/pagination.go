package pagination

const (
	DefaultPageSize = 10
	MaxPageSize     = 250
)

type Pagination struct {
	Page     int `form:"page,default=1" validate:"gte=1"`
	PageSize int `form:"page_size,default=10" validate:"gte=1,lte=250"` // Min 1, Max 250
}

// Normalize clamps page and size into their valid ranges.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the row offset for the normalized page.
func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

type PageInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	Total    int  `json:"total"`
	HasMore  bool `json:"has_more"`
}

// BuildPageInfo describes a page given the total row count.
func BuildPageInfo(p Pagination, total int) PageInfo {
	n := p.Normalize()
	return PageInfo{
		Page:     n.Page,
		PageSize: n.PageSize,
		Total:    total,
		HasMore:  n.Page*n.PageSize < total,
	}
}

// Window is a fixed-size slice of a 1-based ordinal sequence.
type Window struct {
	Index  int
	Offset int
	Size   int
}

// WindowFor returns the window containing the 1-based position.
// Positions below 1 fall into the first window.
func WindowFor(position, size int) Window {
	if size < 1 {
		size = DefaultPageSize
	}
	if position < 1 {
		position = 1
	}
	idx := (position - 1) / size
	return Window{Index: idx, Offset: idx * size, Size: size}
}

// First is the first 1-based position covered by the window.
func (w Window) First() int {
	return w.Offset + 1
}

// Last is the last 1-based position covered by the window.
func (w Window) Last() int {
	return w.Offset + w.Size
}

// Prev returns the preceding window, or false on the first one.
func (w Window) Prev() (Window, bool) {
	if w.Index == 0 {
		return w, false
	}
	return Window{Index: w.Index - 1, Offset: w.Offset - w.Size, Size: w.Size}, true
}

// Next returns the following window.
func (w Window) Next() Window {
	return Window{Index: w.Index + 1, Offset: w.Offset + w.Size, Size: w.Size}
}
