package service

// PageState tracks the last loaded page and whether the store has more.
// HasMore is only meaningful for the filter the rows were loaded under.
type PageState struct {
	CurrentPage int  `json:"current_page"`
	HasMore     bool `json:"has_more"`
}

// NewPageState starts at page 1 with more pages assumed.
func NewPageState() PageState {
	return PageState{CurrentPage: 1, HasMore: true}
}

// ResetToFirstPage rewinds to page 1 and assumes more pages again.
func (p *PageState) ResetToFirstPage() {
	p.CurrentPage = 1
	p.HasMore = true
}

// NextPage is the page a load-more would fetch.
func (p PageState) NextPage() int {
	return p.CurrentPage + 1
}

// Advance moves to the next page. It is a no-op returning false when the
// store reported no further pages; callers must not expose load-more then.
func (p *PageState) Advance() bool {
	if !p.HasMore {
		return false
	}
	p.CurrentPage++
	return true
}

// RecordFetchResult stores the has_more flag of the latest successful fetch.
func (p *PageState) RecordFetchResult(hasMore bool) {
	p.HasMore = hasMore
}
