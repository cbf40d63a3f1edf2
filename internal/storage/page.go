package storage

// Page selects a slice of a listing; Number starts at 1
type Page struct {
	Number int
	Size   int
}

// Page size bounds
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NewPage clamps number and size to valid values
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return Page{Number: number, Size: size}
}

// Offset returns the number of rows skipped before this page
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// TotalPages returns how many pages of this size hold total rows
func (p Page) TotalPages(total int64) int {
	return (int(total) + p.Size - 1) / p.Size
}
