package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// Response bodies are compared after a decode round trip so that key order
// in the fixtures is stable.
func (s *PassHandlerSuite) assertGolden(name string, raw []byte) {
	var body any
	require.NoError(s.T(), json.Unmarshal(raw, &body))
	g := goldie.New(s.T())
	g.AssertJson(s.T(), name, body)
}

func (s *PassHandlerSuite) TestGoldenResponses() {
	s.Run("get_pass", func() {
		s.service.EXPECT().Get(gomock.Any(), int64(42)).Return(fixturePass(), nil)
		rr := s.do(http.MethodGet, "/api/submitData/42/", "")
		s.Require().Equal(http.StatusOK, rr.Code)
		s.assertGolden("get_pass", rr.Body.Bytes())
	})

	s.Run("create_field_errors", func() {
		rr := s.do(http.MethodPost, "/api/submitData/", `{
			"beauty_title": "пер.",
			"title": "Пхия",
			"user": {"email": "qwerty@mail.ru", "fam": "Пупкин", "name": "Василий", "phone": "+7 555 555 55 55"},
			"coords": {"latitude": "45.1234567", "height": 1200.5},
			"images": [{"title": "Седловина", "image": "!!!"}]
		}`)
		s.Require().Equal(http.StatusBadRequest, rr.Code)
		s.assertGolden("create_field_errors", rr.Body.Bytes())
	})
}
