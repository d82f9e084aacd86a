package models

import (
	"fmt"
	"strings"

	dErrors "mountpass/pkg/domain-errors"
)

// Grade is a seasonal difficulty category. The empty grade means unrated.
type Grade string

const (
	GradeNone Grade = ""
	Grade1A   Grade = "1A"
	Grade1B   Grade = "1B"
	Grade2A   Grade = "2A"
	Grade2B   Grade = "2B"
	Grade3A   Grade = "3A"
	Grade3B   Grade = "3B"
)

var gradeOrder = []Grade{Grade1A, Grade1B, Grade2A, Grade2B, Grade3A, Grade3B}

// cyrillicGrades folds the Cyrillic letters submitters often type.
var cyrillicGrades = strings.NewReplacer("А", "A", "Б", "B")

// ParseGrade normalises raw and checks it against the fixed set.
func ParseGrade(raw string) (Grade, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return GradeNone, nil
	}
	g := Grade(cyrillicGrades.Replace(s))
	if g.Rank() == 0 {
		return GradeNone, fmt.Errorf("%q is not a valid choice", raw)
	}
	return g, nil
}

// Rank orders grades from 1 (1A) to 6 (3B); 0 for unrated or unknown.
func (g Grade) Rank() int {
	for i, known := range gradeOrder {
		if g == known {
			return i + 1
		}
	}
	return 0
}

// Level holds the per-season grades of one pass.
type Level struct {
	ID     int64
	Winter Grade
	Summer Grade
	Autumn Grade
	Spring Grade
}

// LevelInput carries raw season grades as submitted.
type LevelInput struct {
	Winter string
	Summer string
	Autumn string
	Spring string
}

// NewLevel parses every season and reports all invalid ones together.
func NewLevel(in LevelInput) (*Level, error) {
	fields := dErrors.FieldErrors{}
	parse := func(field, raw string) Grade {
		g, err := ParseGrade(raw)
		if err != nil {
			fields.Add(field, err.Error())
		}
		return g
	}
	l := &Level{
		Winter: parse("winter", in.Winter),
		Summer: parse("summer", in.Summer),
		Autumn: parse("autumn", in.Autumn),
		Spring: parse("spring", in.Spring),
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}
	return l, nil
}

// LevelPatch updates only the seasons that are set.
type LevelPatch struct {
	Winter *string
	Summer *string
	Autumn *string
	Spring *string
}

// Patched returns a copy of l with the patch applied.
func (l Level) Patched(p LevelPatch) (*Level, error) {
	in := LevelInput{
		Winter: string(l.Winter),
		Summer: string(l.Summer),
		Autumn: string(l.Autumn),
		Spring: string(l.Spring),
	}
	if p.Winter != nil {
		in.Winter = *p.Winter
	}
	if p.Summer != nil {
		in.Summer = *p.Summer
	}
	if p.Autumn != nil {
		in.Autumn = *p.Autumn
	}
	if p.Spring != nil {
		in.Spring = *p.Spring
	}
	next, err := NewLevel(in)
	if err != nil {
		return nil, err
	}
	next.ID = l.ID
	return next, nil
}
