package service

import "github.com/boddenberg/ledgerview/internal/domain"

// FilterState holds the draft criteria bound to the filter inputs and the
// active criteria every fetch runs against. It performs no I/O.
type FilterState struct {
	draft  domain.FilterCriteria
	active domain.FilterCriteria
}

// UpdateDraft sets one draft field. The active criteria are untouched.
func (f *FilterState) UpdateDraft(field domain.FilterField, value string) error {
	next, err := f.draft.With(field, value)
	if err != nil {
		return err
	}
	f.draft = next
	return nil
}

// CommitDraftAsActive copies the draft into the active criteria and returns them.
func (f *FilterState) CommitDraftAsActive() domain.FilterCriteria {
	f.active = f.draft
	return f.active
}

// ResetActiveAndDraft empties both criteria sets.
func (f *FilterState) ResetActiveAndDraft() {
	f.draft = domain.FilterCriteria{}
	f.active = domain.FilterCriteria{}
}

// Draft returns a copy of the draft criteria.
func (f *FilterState) Draft() domain.FilterCriteria { return f.draft }

// Active returns a copy of the active criteria.
func (f *FilterState) Active() domain.FilterCriteria { return f.active }
