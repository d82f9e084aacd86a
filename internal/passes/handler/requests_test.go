package handler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "mountpass/pkg/domain-errors"
)

func decodeRequest(t *testing.T, body string) *PassRequest {
	t.Helper()
	var req PassRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return &req
}

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr string
	}{
		{raw: "45.3842", want: 45.3842},
		{raw: "-180", want: -180},
		{raw: "12.123456", want: 12.123456},
		{raw: "12.1234567", wantErr: "ensure that there are no more than 6 decimal places"},
		{raw: "1e3", wantErr: "a valid number is required"},
		{raw: "", wantErr: "this field is required"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			fields := dErrors.FieldErrors{}
			got, ok := parseCoordinate(fields, "coords.latitude", json.Number(tt.raw))
			if tt.wantErr != "" {
				assert.False(t, ok)
				assert.Equal(t, []string{tt.wantErr}, fields["coords.latitude"])
				return
			}
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.Empty(t, fields)
		})
	}
}

func TestParseHeight(t *testing.T) {
	fields := dErrors.FieldErrors{}
	v, ok := parseHeight(fields, "coords.height", json.Number("1200"))
	assert.True(t, ok)
	assert.Equal(t, 1200, v)

	for _, raw := range []string{"1200.0", "1200.", "1200.000"} {
		v, ok = parseHeight(fields, "coords.height", json.Number(raw))
		assert.True(t, ok, raw)
		assert.Equal(t, 1200, v, raw)
	}
	assert.Empty(t, fields)

	for _, raw := range []string{"1200.5", "1.2e3", "."} {
		fields := dErrors.FieldErrors{}
		_, ok = parseHeight(fields, "coords.height", json.Number(raw))
		assert.False(t, ok, raw)
		assert.Equal(t, []string{"a valid integer is required"}, fields["coords.height"], raw)
	}
}

func TestDecodeBase64(t *testing.T) {
	want := []byte("\x89PNG\r\n\x1a\n")
	for _, in := range []string{
		"iVBORw0KGgo=",
		"iVBORw0KGgo",
		"data:image/png;base64,iVBORw0KGgo=",
		" iVBORw0KGgo= ",
	} {
		got, err := decodeBase64(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := decodeBase64("data:image/png,rawbytes")
	assert.Error(t, err)
	_, err = decodeBase64("!!!")
	assert.Error(t, err)
}

func TestToCreate(t *testing.T) {
	t.Run("missing nested objects", func(t *testing.T) {
		_, err := decodeRequest(t, `{"title":"Пхия"}`).ToCreate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		fields := dErrors.FieldsOf(err)
		assert.Contains(t, fields, "user")
		assert.Contains(t, fields, "coords")
	})

	t.Run("numeric strings are accepted", func(t *testing.T) {
		in, err := decodeRequest(t, `{
			"title": "Пхия",
			"user": {"email": "a@example.com"},
			"coords": {"latitude": "45.3842", "longitude": "7.1525", "height": "1200"},
			"level": {"summer": "1А"}
		}`).ToCreate()
		require.NoError(t, err)
		assert.Equal(t, 45.3842, in.Latitude)
		assert.Equal(t, 7.1525, in.Longitude)
		assert.Equal(t, 1200, in.Height)
		assert.Equal(t, "1А", in.Level.Summer)
		assert.Equal(t, "a@example.com", in.Submitter.Email)
	})

	t.Run("images are decoded in order", func(t *testing.T) {
		in, err := decodeRequest(t, `{
			"user": {}, "coords": {"latitude": 1, "longitude": 2, "height": 3},
			"images": [{"title": "a", "image": "AQI="}, {"title": "b", "data": "AwQ"}]
		}`).ToCreate()
		require.NoError(t, err)
		require.Len(t, in.Images, 2)
		assert.Equal(t, []byte{1, 2}, in.Images[0].Data)
		assert.Equal(t, []byte{3, 4}, in.Images[1].Data)
		assert.Equal(t, "b", in.Images[1].Title)
	})

	t.Run("empty image", func(t *testing.T) {
		_, err := decodeRequest(t, `{
			"user": {}, "coords": {"latitude": 1, "longitude": 2, "height": 3},
			"images": [{"title": "a"}]
		}`).ToCreate()
		require.Error(t, err)
		assert.Equal(t, []string{"no file was submitted"}, dErrors.FieldsOf(err)["images.0.image"])
	})

	t.Run("too many images", func(t *testing.T) {
		req := decodeRequest(t, `{"user": {}, "coords": {"latitude": 1, "longitude": 2, "height": 3}}`)
		images := make([]ImageRequest, maxImages+1)
		for i := range images {
			images[i] = ImageRequest{Title: "x", Image: "AQI="}
		}
		req.Images = &images
		_, err := req.ToCreate()
		require.Error(t, err)
		assert.Contains(t, dErrors.FieldsOf(err), "images")
	})
}

func TestToUpdate(t *testing.T) {
	t.Run("absent members stay nil", func(t *testing.T) {
		in, err := decodeRequest(t, `{"connect": ""}`).ToUpdate()
		require.NoError(t, err)
		require.NotNil(t, in.Fields.Connect)
		assert.Equal(t, "", *in.Fields.Connect)
		assert.Nil(t, in.Fields.Title)
		assert.Nil(t, in.Submitter)
		assert.Nil(t, in.Coords)
		assert.Nil(t, in.Level)
		assert.Nil(t, in.Images)
	})

	t.Run("empty image list clears the set", func(t *testing.T) {
		in, err := decodeRequest(t, `{"images": []}`).ToUpdate()
		require.NoError(t, err)
		require.NotNil(t, in.Images)
		assert.Empty(t, *in.Images)
	})

	t.Run("user members are carried for comparison", func(t *testing.T) {
		in, err := decodeRequest(t, `{"user": {"phone": "+7 999 000 00 00"}}`).ToUpdate()
		require.NoError(t, err)
		require.NotNil(t, in.Submitter)
		require.NotNil(t, in.Submitter.Phone)
		assert.Nil(t, in.Submitter.Email)
	})
}
