package handler

import (
	"time"

	"mountpass/internal/passes/models"
)

// URLBuilder resolves a stored media path to its public URL.
type URLBuilder interface {
	URL(path string) string
}

// CreateResponse is the submission envelope.
type CreateResponse struct {
	Status  int                 `json:"status"`
	Message string              `json:"message"`
	ID      *int64              `json:"id,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// StateResponse is the envelope of edit and moderation calls; State is 1 on
// success and 0 otherwise.
type StateResponse struct {
	State   int                 `json:"state"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// ErrorResponse is the failure body of lookups.
type ErrorResponse struct {
	Error string `json:"error"`
}

type PassResponse struct {
	ID          int64           `json:"id"`
	BeautyTitle string          `json:"beauty_title"`
	Title       string          `json:"title"`
	OtherTitles string          `json:"other_titles"`
	Connect     string          `json:"connect"`
	User        *UserResponse   `json:"user"`
	Coords      *CoordsResponse `json:"coords"`
	Level       *LevelResponse  `json:"level"`
	Images      []ImageResponse `json:"images"`
	AddTime     time.Time       `json:"add_time"`
	UpdateTime  time.Time       `json:"update_time"`
	Status      models.Status   `json:"status"`
	StatusLabel string          `json:"status_display"`
	CanBeEdited bool            `json:"can_be_edited"`
}

type UserResponse struct {
	Email string `json:"email"`
	Fam   string `json:"fam"`
	Name  string `json:"name"`
	Otc   string `json:"otc"`
	Phone string `json:"phone"`
}

type CoordsResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Height    int     `json:"height"`
}

type LevelResponse struct {
	Winter string `json:"winter"`
	Summer string `json:"summer"`
	Autumn string `json:"autumn"`
	Spring string `json:"spring"`
}

type ImageResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"date_added"`
}

// NewPassResponse renders p the way GET /api/submitData/{id} returns it.
func NewPassResponse(p *models.Pass, urls URLBuilder) PassResponse {
	resp := PassResponse{
		ID:          p.ID,
		BeautyTitle: p.BeautyTitle,
		Title:       p.Title,
		OtherTitles: p.OtherTitles,
		Connect:     p.Connect,
		AddTime:     p.AddTime.UTC(),
		UpdateTime:  p.UpdateTime.UTC(),
		Status:      p.Status,
		StatusLabel: p.Status.Label(),
		CanBeEdited: p.CanBeEdited(),
		Images:      make([]ImageResponse, 0, len(p.Images)),
	}
	if u := p.Submitter; u != nil {
		resp.User = &UserResponse{Email: u.Email, Fam: u.FamilyName, Name: u.GivenName, Otc: u.Patronymic, Phone: u.Phone}
	}
	if c := p.Coords; c != nil {
		resp.Coords = &CoordsResponse{Latitude: c.Latitude, Longitude: c.Longitude, Height: c.Height}
	}
	if l := p.Level; l != nil {
		resp.Level = &LevelResponse{Winter: string(l.Winter), Summer: string(l.Summer), Autumn: string(l.Autumn), Spring: string(l.Spring)}
	}
	for _, img := range p.Images {
		url := img.Path
		if urls != nil {
			url = urls.URL(img.Path)
		}
		resp.Images = append(resp.Images, ImageResponse{
			ID:        img.ID,
			Title:     img.Title,
			Image:     url,
			CreatedAt: img.CreatedAt.UTC(),
		})
	}
	return resp
}

func toPassListResponse(passes []*models.Pass, urls URLBuilder) []PassResponse {
	out := make([]PassResponse, 0, len(passes))
	for _, p := range passes {
		out = append(out, NewPassResponse(p, urls))
	}
	return out
}
