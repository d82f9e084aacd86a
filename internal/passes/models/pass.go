package models

import (
	"time"

	dErrors "mountpass/pkg/domain-errors"
)

// NotEditableMessage is returned whenever an edit targets a pass that has
// left the new status.
const NotEditableMessage = "editing is only allowed for passes with status new"

// Pass is the aggregate root of a submission.
//
// Invariants:
//   - Title and BeautyTitle are non-empty
//   - Coords and Level belong to this pass only
//   - fields may change only while Status == StatusNew
//   - Status changes come from moderation, never from an edit
type Pass struct {
	ID          int64
	BeautyTitle string
	Title       string
	OtherTitles string
	Connect     string
	Status      Status
	AddTime     time.Time
	UpdateTime  time.Time

	SubmitterID int64
	Submitter   *Submitter
	CoordsID    int64
	Coords      *Coords
	LevelID     int64
	Level       *Level
	Images      []Image
}

// PassFields are the scalar, user-editable fields.
type PassFields struct {
	BeautyTitle string
	Title       string
	OtherTitles string
	Connect     string
}

// PassFieldsPatch updates only the fields that are set.
type PassFieldsPatch struct {
	BeautyTitle *string
	Title       *string
	OtherTitles *string
	Connect     *string
}

func validateFields(f PassFields) (PassFields, error) {
	f = PassFields{
		BeautyTitle: CleanText(f.BeautyTitle),
		Title:       CleanText(f.Title),
		OtherTitles: CleanText(f.OtherTitles),
		Connect:     CleanText(f.Connect),
	}
	fields := dErrors.FieldErrors{}
	checkRequired(fields, "beauty_title", f.BeautyTitle, MaxTitleLength)
	checkRequired(fields, "title", f.Title, MaxTitleLength)
	checkLength(fields, "other_titles", f.OtherTitles, MaxTitleLength)
	if err := fields.Err(); err != nil {
		return PassFields{}, err
	}
	return f, nil
}

// NewPass validates the scalar fields and returns a pass in StatusNew.
func NewPass(f PassFields, now time.Time) (*Pass, error) {
	f, err := validateFields(f)
	if err != nil {
		return nil, err
	}
	return &Pass{
		BeautyTitle: f.BeautyTitle,
		Title:       f.Title,
		OtherTitles: f.OtherTitles,
		Connect:     f.Connect,
		Status:      StatusNew,
		AddTime:     now,
		UpdateTime:  now,
	}, nil
}

// CanBeEdited reports whether the pass still accepts field edits.
func (p *Pass) CanBeEdited() bool {
	return p.Status == StatusNew
}

// CanEdit returns the non-editable validation error once moderation began.
func (p *Pass) CanEdit() error {
	if !p.CanBeEdited() {
		return dErrors.Validation(NotEditableMessage, dErrors.FieldErrors{
			"status": {NotEditableMessage},
		})
	}
	return nil
}

// ApplyFields validates and applies a partial update of the scalar fields.
// Call CanEdit first.
func (p *Pass) ApplyFields(patch PassFieldsPatch, now time.Time) error {
	f := PassFields{
		BeautyTitle: p.BeautyTitle,
		Title:       p.Title,
		OtherTitles: p.OtherTitles,
		Connect:     p.Connect,
	}
	if patch.BeautyTitle != nil {
		f.BeautyTitle = *patch.BeautyTitle
	}
	if patch.Title != nil {
		f.Title = *patch.Title
	}
	if patch.OtherTitles != nil {
		f.OtherTitles = *patch.OtherTitles
	}
	if patch.Connect != nil {
		f.Connect = *patch.Connect
	}
	f, err := validateFields(f)
	if err != nil {
		return err
	}
	p.BeautyTitle = f.BeautyTitle
	p.Title = f.Title
	p.OtherTitles = f.OtherTitles
	p.Connect = f.Connect
	p.UpdateTime = now
	return nil
}

// ApplyStatus moves the pass to status and returns the previous one. Any
// status is reachable from any other.
func (p *Pass) ApplyStatus(status Status, now time.Time) Status {
	prev := p.Status
	p.Status = status
	p.UpdateTime = now
	return prev
}

// ListFilter narrows a submitter's pass listing.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// Normalized clamps limit and offset into range.
func (f ListFilter) Normalized() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
