package handler

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"mountpass/internal/passes/models"
	"mountpass/internal/passes/service"
	dErrors "mountpass/pkg/domain-errors"
)

const (
	maxCoordDecimals = 6
	maxImages        = 10

	msgRequired = "this field is required"
)

// PassRequest is the body of create and edit calls. Pointers distinguish
// an absent member from an empty one; read-only members such as status and
// add_time are ignored.
type PassRequest struct {
	BeautyTitle *string         `json:"beauty_title"`
	Title       *string         `json:"title"`
	OtherTitles *string         `json:"other_titles"`
	Connect     *string         `json:"connect"`
	User        *UserRequest    `json:"user"`
	Coords      *CoordsRequest  `json:"coords"`
	Level       *LevelRequest   `json:"level"`
	Images      *[]ImageRequest `json:"images"`
}

type UserRequest struct {
	Email *string `json:"email"`
	Fam   *string `json:"fam"`
	Name  *string `json:"name"`
	Otc   *string `json:"otc"`
	Phone *string `json:"phone"`
}

// CoordsRequest accepts numbers or numeric strings.
type CoordsRequest struct {
	Latitude  *json.Number `json:"latitude"`
	Longitude *json.Number `json:"longitude"`
	Height    *json.Number `json:"height"`
}

type LevelRequest struct {
	Winter *string `json:"winter"`
	Summer *string `json:"summer"`
	Autumn *string `json:"autumn"`
	Spring *string `json:"spring"`
}

// ImageRequest carries base64 or a data: URL in Image; Data is accepted as
// an alias.
type ImageRequest struct {
	Title string `json:"title"`
	Image string `json:"image"`
	Data  string `json:"data"`
}

// StatusRequest is the body of a moderation call.
type StatusRequest struct {
	Status string `json:"status"`
}

// ToCreate checks presence and syntax, leaving range and format rules to
// the service. Every problem found is reported at once.
func (r *PassRequest) ToCreate() (service.CreateInput, error) {
	fields := dErrors.FieldErrors{}
	in := service.CreateInput{
		Fields: models.PassFields{
			BeautyTitle: deref(r.BeautyTitle),
			Title:       deref(r.Title),
			OtherTitles: deref(r.OtherTitles),
			Connect:     deref(r.Connect),
		},
	}

	if r.User == nil {
		fields.Add("user", msgRequired)
	} else {
		in.Submitter = models.SubmitterInput{
			Email:      deref(r.User.Email),
			FamilyName: deref(r.User.Fam),
			GivenName:  deref(r.User.Name),
			Patronymic: deref(r.User.Otc),
			Phone:      deref(r.User.Phone),
		}
	}

	if r.Coords == nil {
		fields.Add("coords", msgRequired)
	} else {
		if v, ok := requiredCoordinate(fields, "coords.latitude", r.Coords.Latitude); ok {
			in.Latitude = v
		}
		if v, ok := requiredCoordinate(fields, "coords.longitude", r.Coords.Longitude); ok {
			in.Longitude = v
		}
		if r.Coords.Height == nil {
			fields.Add("coords.height", msgRequired)
		} else if v, ok := parseHeight(fields, "coords.height", *r.Coords.Height); ok {
			in.Height = v
		}
	}

	if r.Level != nil {
		in.Level = models.LevelInput{
			Winter: deref(r.Level.Winter),
			Summer: deref(r.Level.Summer),
			Autumn: deref(r.Level.Autumn),
			Spring: deref(r.Level.Spring),
		}
	}

	if r.Images != nil {
		in.Images = decodeImages(fields, *r.Images)
	}

	if err := fields.Err(); err != nil {
		return service.CreateInput{}, err
	}
	return in, nil
}

// ToUpdate maps present members onto a partial edit.
func (r *PassRequest) ToUpdate() (service.UpdateInput, error) {
	fields := dErrors.FieldErrors{}
	in := service.UpdateInput{
		Fields: models.PassFieldsPatch{
			BeautyTitle: r.BeautyTitle,
			Title:       r.Title,
			OtherTitles: r.OtherTitles,
			Connect:     r.Connect,
		},
	}

	if r.User != nil {
		in.Submitter = &models.SubmitterPatch{
			Email:      r.User.Email,
			FamilyName: r.User.Fam,
			GivenName:  r.User.Name,
			Patronymic: r.User.Otc,
			Phone:      r.User.Phone,
		}
	}

	if r.Coords != nil {
		patch := &models.CoordsPatch{}
		if r.Coords.Latitude != nil {
			if v, ok := parseCoordinate(fields, "coords.latitude", *r.Coords.Latitude); ok {
				patch.Latitude = &v
			}
		}
		if r.Coords.Longitude != nil {
			if v, ok := parseCoordinate(fields, "coords.longitude", *r.Coords.Longitude); ok {
				patch.Longitude = &v
			}
		}
		if r.Coords.Height != nil {
			if v, ok := parseHeight(fields, "coords.height", *r.Coords.Height); ok {
				patch.Height = &v
			}
		}
		in.Coords = patch
	}

	if r.Level != nil {
		in.Level = &models.LevelPatch{
			Winter: r.Level.Winter,
			Summer: r.Level.Summer,
			Autumn: r.Level.Autumn,
			Spring: r.Level.Spring,
		}
	}

	if r.Images != nil {
		images := decodeImages(fields, *r.Images)
		in.Images = &images
	}

	if err := fields.Err(); err != nil {
		return service.UpdateInput{}, err
	}
	return in, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func requiredCoordinate(fields dErrors.FieldErrors, field string, n *json.Number) (float64, bool) {
	if n == nil {
		fields.Add(field, msgRequired)
		return 0, false
	}
	return parseCoordinate(fields, field, *n)
}

// parseCoordinate accepts a decimal with at most six fractional digits.
func parseCoordinate(fields dErrors.FieldErrors, field string, n json.Number) (float64, bool) {
	raw := strings.TrimSpace(n.String())
	if raw == "" {
		fields.Add(field, msgRequired)
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		fields.Add(field, "a valid number is required")
		return 0, false
	}
	if strings.ContainsAny(raw, "eE") {
		fields.Add(field, "a valid number is required")
		return 0, false
	}
	if dot := strings.IndexByte(raw, '.'); dot >= 0 && len(raw)-dot-1 > maxCoordDecimals {
		fields.Add(field, fmt.Sprintf("ensure that there are no more than %d decimal places", maxCoordDecimals))
		return 0, false
	}
	return v, true
}

func parseHeight(fields dErrors.FieldErrors, field string, n json.Number) (int, bool) {
	raw := strings.TrimSpace(n.String())
	if raw == "" {
		fields.Add(field, msgRequired)
		return 0, false
	}
	// Integral decimals such as 1200.0 are whole numbers.
	if dot := strings.IndexByte(raw, '.'); dot >= 0 && strings.Trim(raw[dot+1:], "0") == "" {
		raw = raw[:dot]
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		fields.Add(field, "a valid integer is required")
		return 0, false
	}
	return v, true
}

func decodeImages(fields dErrors.FieldErrors, reqs []ImageRequest) []models.ImageInput {
	if len(reqs) > maxImages {
		fields.Add("images", fmt.Sprintf("ensure this field has no more than %d elements", maxImages))
		return nil
	}
	out := make([]models.ImageInput, 0, len(reqs))
	for i, img := range reqs {
		encoded := img.Image
		if encoded == "" {
			encoded = img.Data
		}
		field := fmt.Sprintf("images.%d.image", i)
		if strings.TrimSpace(encoded) == "" {
			fields.Add(field, "no file was submitted")
			continue
		}
		data, err := decodeBase64(encoded)
		if err != nil {
			fields.Add(field, "the submitted data was not a valid base64 image")
			continue
		}
		out = append(out, models.ImageInput{Title: img.Title, Data: data})
	}
	return out
}

// decodeBase64 accepts bare base64 (padded or not) and data: URLs.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 || !strings.HasSuffix(s[:comma], ";base64") {
			return nil, fmt.Errorf("unsupported data URL")
		}
		s = s[comma+1:]
	}
	s = strings.TrimRight(s, "=")
	if data, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}
