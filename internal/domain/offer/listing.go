package offer

import "fmt"

// DefaultPageSize is the number of offers shown per page.
const DefaultPageSize = 6

// Listing pages through a fixed list of offers. Page numbers start at 1.
//
// A Listing is not safe for concurrent use; each request builds its own.
type Listing struct {
	offers   []Offer
	pageSize int
	page     int
	code     string
}

// NewListing returns a listing positioned on the first page.
func NewListing(offers []Offer, pageSize int, code string) *Listing {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Listing{offers: offers, pageSize: pageSize, page: 1, code: code}
}

// NumberOfPages is at least 1, even for an empty listing.
func (l *Listing) NumberOfPages() int {
	n := (len(l.offers) + l.pageSize - 1) / l.pageSize
	return max(n, 1)
}

// CurrentPage returns the current page number.
func (l *Listing) CurrentPage() int { return l.page }

// OnFirstPage reports whether there is no previous page.
func (l *Listing) OnFirstPage() bool { return l.page <= 1 }

// OnLastPage reports whether there is no next page.
func (l *Listing) OnLastPage() bool { return l.page >= l.NumberOfPages() }

// Next moves to the next page and reports whether it moved.
func (l *Listing) Next() bool {
	if l.OnLastPage() {
		return false
	}
	l.page++
	return true
}

// Previous moves to the previous page and reports whether it moved.
func (l *Listing) Previous() bool {
	if l.OnFirstPage() {
		return false
	}
	l.page--
	return true
}

// GoToPage moves to page n clamped to the valid range and returns the
// resulting page.
func (l *Listing) GoToPage(n int) int {
	l.page = min(max(n, 1), l.NumberOfPages())
	return l.page
}

// Page is one rendered window of the listing.
type Page struct {
	Code             string    `json:"code"`
	Page             int       `json:"page"`
	NumberOfPages    int       `json:"number_of_pages"`
	Total            int       `json:"total"`
	IsEnrollmentCode bool      `json:"is_enrollment_code"`
	ShowVerified     bool      `json:"show_verified_certificate"`
	Items            []Item    `json:"items"`
	Controls         []Control `json:"pagination"`
}

// Render computes display values for the offers on the current page and
// the pagination controls.
func (l *Listing) Render() Page {
	start := (l.page - 1) * l.pageSize
	end := min(start+l.pageSize, len(l.offers))

	p := Page{
		Code:          l.code,
		Page:          l.page,
		NumberOfPages: l.NumberOfPages(),
		Total:         len(l.offers),
		Items:         make([]Item, 0, max(end-start, 0)),
		Controls:      Controls(l.page, l.NumberOfPages()),
	}
	if len(l.offers) > 0 {
		first := l.offers[0]
		p.IsEnrollmentCode = IsEnrollmentCode(first.Benefit)
		p.ShowVerified = first.ContainsVerified
	}
	for _, o := range l.offers[start:end] {
		p.Items = append(p.Items, Display(o))
	}
	return p
}

// ControlKind is the kind of a pagination control.
type ControlKind string

const (
	ControlPrevious ControlKind = "previous"
	ControlPage     ControlKind = "page"
	ControlEllipsis ControlKind = "ellipsis"
	ControlNext     ControlKind = "next"
)

// Control is one element of the pagination bar.
type Control struct {
	Kind      ControlKind `json:"kind"`
	Page      int         `json:"page,omitempty"`
	Active    bool        `json:"active,omitempty"`
	Disabled  bool        `json:"disabled,omitempty"`
	AriaLabel string      `json:"aria_label"`
}

const (
	frontSpace         = 2
	ellipsisAfterStart = 4
	ellipsisBeforeEnd  = 3
)

// Controls lays out the pagination bar for page out of pages. Page 1 and
// the last page are always reachable; the neighbours of page are shown
// explicitly and an ellipsis stands in for the pages skipped between.
func Controls(page, pages int) []Control {
	out := []Control{{
		Kind:      ControlPrevious,
		Disabled:  page <= 1,
		AriaLabel: "Load the records for the previous page",
	}}

	if page > frontSpace {
		out = append(out, pageControl(1, false))
		if page >= ellipsisAfterStart {
			out = append(out, ellipsis())
		}
	}
	if page > 1 {
		out = append(out, pageControl(page-1, false))
	}
	out = append(out, pageControl(page, true))
	if page < pages {
		out = append(out, pageControl(page+1, false))
	}
	if page+1 < pages {
		if page <= pages-ellipsisBeforeEnd {
			out = append(out, ellipsis())
		}
		out = append(out, pageControl(pages, false))
	}

	return append(out, Control{
		Kind:      ControlNext,
		Disabled:  page >= pages,
		AriaLabel: "Load the records for the next page",
	})
}

func pageControl(n int, active bool) Control {
	return Control{
		Kind:      ControlPage,
		Page:      n,
		Active:    active,
		AriaLabel: fmt.Sprintf("Load the records for page %d", n),
	}
}

func ellipsis() Control {
	return Control{Kind: ControlEllipsis, Disabled: true, AriaLabel: "Ellipsis"}
}
