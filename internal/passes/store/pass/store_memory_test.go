package pass

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mountpass/internal/passes/models"
	"mountpass/pkg/platform/sentinel"
)

type PassStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *PassStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestPassStoreSuite(t *testing.T) {
	suite.Run(t, new(PassStoreSuite))
}

func (s *PassStoreSuite) createPass(submitterID int64, title string, addTime time.Time) *models.Pass {
	c := &models.Coords{Latitude: 45.3842, Longitude: 7.1525, Height: 1200}
	s.Require().NoError(s.store.CreateCoords(s.ctx, c))
	l := &models.Level{Summer: models.Grade1A}
	s.Require().NoError(s.store.CreateLevel(s.ctx, l))

	p := &models.Pass{
		BeautyTitle: "пер.",
		Title:       title,
		Status:      models.StatusNew,
		AddTime:     addTime,
		UpdateTime:  addTime,
		SubmitterID: submitterID,
		CoordsID:    c.ID,
		LevelID:     l.ID,
	}
	s.Require().NoError(s.store.Create(s.ctx, p))
	return p
}

func (s *PassStoreSuite) TestCreateAndFind() {
	p := s.createPass(1, "Пхия", s.now)
	s.Require().NoError(s.store.AddImage(s.ctx, &models.Image{PassID: p.ID, Title: "Седловина", Path: "pass_images/a.jpg"}))

	found, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("Пхия", found.Title)
	s.Require().NotNil(found.Coords)
	s.Equal(1200, found.Coords.Height)
	s.Require().NotNil(found.Level)
	s.Equal(models.Grade1A, found.Level.Summer)
	s.Require().Len(found.Images, 1)
	s.Equal("Седловина", found.Images[0].Title)

	_, err = s.store.FindByID(s.ctx, 404)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PassStoreSuite) TestCoordsAndLevelAreNeverShared() {
	p := s.createPass(1, "first", s.now)
	dup := &models.Pass{Title: "second", SubmitterID: 1, CoordsID: p.CoordsID, LevelID: p.LevelID}
	err := s.store.Create(s.ctx, dup)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *PassStoreSuite) TestUpdateAndNestedRows() {
	p := s.createPass(1, "Пхия", s.now)
	loaded, err := s.store.FindByIDForUpdate(s.ctx, p.ID)
	s.Require().NoError(err)

	loaded.Title = "Пхия Южный"
	loaded.Status = models.StatusPending
	s.Require().NoError(s.store.Update(s.ctx, loaded))
	loaded.Coords.Height = 3000
	s.Require().NoError(s.store.UpdateCoords(s.ctx, loaded.Coords))
	loaded.Level.Winter = models.Grade2B
	s.Require().NoError(s.store.UpdateLevel(s.ctx, loaded.Level))

	found, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("Пхия Южный", found.Title)
	s.Equal(models.StatusPending, found.Status)
	s.Equal(3000, found.Coords.Height)
	s.Equal(models.Grade2B, found.Level.Winter)

	s.ErrorIs(s.store.Update(s.ctx, &models.Pass{ID: 99}), sentinel.ErrNotFound)
}

func (s *PassStoreSuite) TestRemoveImages() {
	p := s.createPass(1, "Пхия", s.now)
	for _, title := range []string{"a", "b"} {
		s.Require().NoError(s.store.AddImage(s.ctx, &models.Image{PassID: p.ID, Title: title}))
	}

	removed, err := s.store.RemoveImages(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Len(removed, 2)

	found, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Empty(found.Images)
}

func (s *PassStoreSuite) TestListBySubmitter() {
	oldest := s.createPass(1, "oldest", s.now)
	middle := s.createPass(1, "middle", s.now.Add(time.Hour))
	newest := s.createPass(1, "newest", s.now.Add(2*time.Hour))
	s.createPass(2, "someone else", s.now)

	middle.Status = models.StatusAccepted
	s.Require().NoError(s.store.Update(s.ctx, middle))

	s.Run("newest first", func() {
		passes, total, err := s.store.ListBySubmitter(s.ctx, 1, models.ListFilter{})
		s.Require().NoError(err)
		s.Equal(3, total)
		s.Equal([]int64{newest.ID, middle.ID, oldest.ID}, ids(passes))
	})

	s.Run("status filter", func() {
		passes, total, err := s.store.ListBySubmitter(s.ctx, 1, models.ListFilter{Status: models.StatusAccepted})
		s.Require().NoError(err)
		s.Equal(1, total)
		s.Equal([]int64{middle.ID}, ids(passes))
	})

	s.Run("pagination keeps total", func() {
		passes, total, err := s.store.ListBySubmitter(s.ctx, 1, models.ListFilter{Limit: 1, Offset: 1})
		s.Require().NoError(err)
		s.Equal(3, total)
		s.Equal([]int64{middle.ID}, ids(passes))
	})

	s.Run("no passes is an empty list", func() {
		passes, total, err := s.store.ListBySubmitter(s.ctx, 42, models.ListFilter{})
		s.Require().NoError(err)
		s.Zero(total)
		s.NotNil(passes)
		s.Empty(passes)
	})
}

func (s *PassStoreSuite) TestSnapshotRestore() {
	kept := s.createPass(1, "kept", s.now)
	restore := s.store.Snapshot()

	s.createPass(1, "dropped", s.now)
	kept.Title = "changed"
	s.Require().NoError(s.store.Update(s.ctx, kept))
	restore()

	passes, total, err := s.store.ListBySubmitter(s.ctx, 1, models.ListFilter{})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal("kept", passes[0].Title)
}

func ids(passes []*models.Pass) []int64 {
	out := make([]int64, len(passes))
	for i, p := range passes {
		out[i] = p.ID
	}
	return out
}
