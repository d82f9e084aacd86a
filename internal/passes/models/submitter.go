package models

import (
	"net/mail"
	"strings"

	dErrors "mountpass/pkg/domain-errors"
)

// Submitter is the tourist who submitted one or more passes. Email is the
// natural key.
type Submitter struct {
	ID         int64
	Email      string
	FamilyName string
	GivenName  string
	Patronymic string
	Phone      string
}

// SubmitterInput carries contact details as submitted.
type SubmitterInput struct {
	Email      string
	FamilyName string
	GivenName  string
	Patronymic string
	Phone      string
}

// FullName renders "Family Given" the way moderators list submitters.
func (s *Submitter) FullName() string {
	return strings.TrimSpace(s.FamilyName + " " + s.GivenName)
}

// SameContact reports whether other carries identical contact data.
func (s *Submitter) SameContact(other *Submitter) bool {
	return s.Email == other.Email &&
		s.FamilyName == other.FamilyName &&
		s.GivenName == other.GivenName &&
		s.Patronymic == other.Patronymic &&
		s.Phone == other.Phone
}

// NewSubmitter normalises and validates contact data.
func NewSubmitter(in SubmitterInput) (*Submitter, error) {
	fields := dErrors.FieldErrors{}

	email, err := NormalizeEmail(in.Email)
	if err != nil {
		fields.Add("email", dErrors.MessageOf(err))
	}

	s := &Submitter{
		Email:      email,
		FamilyName: CleanText(in.FamilyName),
		GivenName:  CleanText(in.GivenName),
		Patronymic: CleanText(in.Patronymic),
		Phone:      strings.TrimSpace(in.Phone),
	}
	checkRequired(fields, "fam", s.FamilyName, MaxNameLength)
	checkRequired(fields, "name", s.GivenName, MaxNameLength)
	checkLength(fields, "otc", s.Patronymic, MaxNameLength)

	if s.Phone == "" {
		fields.Add("phone", "this field is required")
	} else if _, err := NormalizePhone(s.Phone); err != nil {
		fields.Add("phone", dErrors.MessageOf(err))
	}

	if err := fields.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// NormalizeEmail validates a bare address and lower-cases it. Lookups by
// email are case-insensitive.
func NormalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeValidation, "this field is required")
	}
	if len(raw) > MaxEmailLength {
		return "", dErrors.New(dErrors.CodeValidation, "enter a valid email address")
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw || addr.Name != "" {
		return "", dErrors.New(dErrors.CodeValidation, "enter a valid email address")
	}
	at := strings.LastIndexByte(addr.Address, '@')
	if at <= 0 || !strings.Contains(addr.Address[at+1:], ".") {
		return "", dErrors.New(dErrors.CodeValidation, "enter a valid email address")
	}
	return strings.ToLower(addr.Address), nil
}

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15
)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// NormalizePhone strips formatting (spaces, dashes, parentheses and one
// leading plus) and returns the bare digits. "8 (999) 123-45-67" and
// "+7 999 123 45 67" are both accepted.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > MaxPhoneLength {
		return "", dErrors.New(dErrors.CodeValidation, "ensure this field has no more than 20 characters")
	}
	digits := phoneSeparators.Replace(raw)
	digits = strings.TrimPrefix(digits, "+")
	if digits == "" {
		return "", dErrors.New(dErrors.CodeValidation, "invalid phone number format")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", dErrors.New(dErrors.CodeValidation, "invalid phone number format")
		}
	}
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", dErrors.New(dErrors.CodeValidation, "phone number must contain 10 to 15 digits")
	}
	return digits, nil
}

// SubmitterPatch carries the contact fields sent with an edit. Edits may
// repeat the stored values but never change them.
type SubmitterPatch struct {
	Email      *string
	FamilyName *string
	GivenName  *string
	Patronymic *string
	Phone      *string
}

const submitterLockedMessage = "submitter data cannot be changed when editing a pass"

// Changes reports every field of p that differs from s after normalisation.
func (s *Submitter) Changes(p SubmitterPatch) dErrors.FieldErrors {
	fields := dErrors.FieldErrors{}
	if p.Email != nil {
		if email, err := NormalizeEmail(*p.Email); err != nil || email != s.Email {
			fields.Add("email", submitterLockedMessage)
		}
	}
	text := func(field string, value *string, current string) {
		if value != nil && CleanText(*value) != current {
			fields.Add(field, submitterLockedMessage)
		}
	}
	text("fam", p.FamilyName, s.FamilyName)
	text("name", p.GivenName, s.GivenName)
	text("otc", p.Patronymic, s.Patronymic)
	if p.Phone != nil {
		got, err := NormalizePhone(*p.Phone)
		want, _ := NormalizePhone(s.Phone)
		if err != nil || got != want {
			fields.Add("phone", submitterLockedMessage)
		}
	}
	return fields
}
