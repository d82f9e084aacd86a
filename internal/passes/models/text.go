package models

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	dErrors "mountpass/pkg/domain-errors"
)

// Field length limits mirror the column widths.
const (
	MaxTitleLength = 255
	MaxNameLength  = 50
	MaxPhoneLength = 20
	MaxEmailLength = 254
)

// CleanText trims and NFC-normalises user text so that composed and
// decomposed Cyrillic (й vs и + U+0306) compare and store identically.
func CleanText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func checkRequired(fields dErrors.FieldErrors, field, value string, max int) {
	if value == "" {
		fields.Add(field, "this field is required")
		return
	}
	checkLength(fields, field, value, max)
}

func checkLength(fields dErrors.FieldErrors, field, value string, max int) {
	if max > 0 && utf8.RuneCountInString(value) > max {
		fields.Add(field, fmt.Sprintf("ensure this field has no more than %d characters", max))
	}
}
