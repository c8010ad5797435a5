package catalog

import (
	"strconv"
	"strings"
)

const DefaultPageSize = 12

// Page describes one clamped page of a listing
type Page struct {
	Number   int   `json:"number"`
	Size     int   `json:"size"`
	NumPages int   `json:"num_pages"`
	Total    int64 `json:"total"`
}

// NewPage clamps the requested page number into [1, NumPages]. Anything that is not
// a number means page 1. An empty listing still has one page.
func NewPage(raw string, total int64, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	numPages := int((total + int64(size) - 1) / int64(size))
	if numPages < 1 {
		numPages = 1
	}
	number, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || number < 1 {
		number = 1
	}
	if number > numPages {
		number = numPages
	}
	return Page{Number: number, Size: size, NumPages: numPages, Total: total}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

func (p Page) HasPrevious() bool {
	return p.Number > 1
}

func (p Page) HasNext() bool {
	return p.Number < p.NumPages
}

func (p Page) PreviousNumber() int {
	if p.HasPrevious() {
		return p.Number - 1
	}
	return p.Number
}

func (p Page) NextNumber() int {
	if p.HasNext() {
		return p.Number + 1
	}
	return p.Number
}

// Numbers lists every page number, for pager links
func (p Page) Numbers() []int {
	nums := make([]int, p.NumPages)
	for i := range nums {
		nums[i] = i + 1
	}
	return nums
}
