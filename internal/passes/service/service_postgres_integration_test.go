//go:build integration

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mountpass/internal/passes/media"
	"mountpass/internal/passes/models"
	outboxstore "mountpass/internal/passes/store/outbox"
	passstore "mountpass/internal/passes/store/pass"
	submitterstore "mountpass/internal/passes/store/submitter"
	"mountpass/internal/platform/postgres"
	dErrors "mountpass/pkg/domain-errors"
	"mountpass/pkg/platform/sentinel"
	"mountpass/pkg/requestcontext"
	"mountpass/pkg/testutil/containers"
)

type PostgresServiceSuite struct {
	suite.Suite
	pg         *containers.PostgresContainer
	submitters *submitterstore.PostgresStore
	passes     *passstore.PostgresStore
	outbox     *outboxstore.PostgresStore
	service    *Service
	ctx        context.Context
}

func TestPostgresServiceSuite(t *testing.T) {
	suite.Run(t, new(PostgresServiceSuite))
}

func (s *PostgresServiceSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
}

func (s *PostgresServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC))
	s.Require().NoError(s.pg.TruncateTables(s.ctx, "outbox", "pass_images", "passes", "coords", "levels", "submitters"))

	s.submitters = submitterstore.NewPostgres(s.pg.DB)
	s.passes = passstore.NewPostgres(s.pg.DB)
	s.outbox = outboxstore.NewPostgres(s.pg.DB)
	s.service = New(s.submitters, s.passes, media.New(s.T().TempDir(), "/media", 1<<20),
		WithTx(postgres.NewTx(s.pg.DB)),
		WithOutbox(s.outbox),
	)
}

func (s *PostgresServiceSuite) TestCreatePersistsNestedRows() {
	created, err := s.service.Create(s.ctx, validInput("Tourist@Example.com"))
	s.Require().NoError(err)

	found, err := s.service.Get(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusNew, found.Status)
	s.Equal("пер.", found.BeautyTitle)
	s.Require().NotNil(found.Coords)
	s.InDelta(45.3842, found.Coords.Latitude, 1e-9)
	s.Equal(1200, found.Coords.Height)
	s.Require().NotNil(found.Level)
	s.Equal(models.Grade1A, found.Level.Summer)
	s.Require().Len(found.Images, 1)
	s.Require().NotNil(found.Submitter)
	s.Equal("tourist@example.com", found.Submitter.Email)

	pending, err := s.outbox.ListPending(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(models.EventPassSubmitted, pending[0].Event.Type)
	s.Equal(created.ID, pending[0].Event.PassID)
}

func (s *PostgresServiceSuite) TestRepeatSubmissionReusesSubmitter() {
	first, err := s.service.Create(s.ctx, validInput("tourist@example.com"))
	s.Require().NoError(err)
	second, err := s.service.Create(s.ctx, validInput("TOURIST@example.com"))
	s.Require().NoError(err)
	s.Equal(first.SubmitterID, second.SubmitterID)

	passes, total, err := s.service.ListByEmail(s.ctx, "tourist@example.com", models.ListFilter{})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Require().Len(passes, 2)
	s.Equal(second.ID, passes[0].ID)

	_, _, err = s.service.ListByEmail(s.ctx, "ghost@example.com", models.ListFilter{})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *PostgresServiceSuite) TestStatusGatesEdits() {
	created, err := s.service.Create(s.ctx, validInput("tourist@example.com"))
	s.Require().NoError(err)

	height := 1300
	updated, err := s.service.Update(s.ctx, created.ID, UpdateInput{Coords: &models.CoordsPatch{Height: &height}})
	s.Require().NoError(err)
	s.Equal(1300, updated.Coords.Height)
	s.Equal(created.CoordsID, updated.CoordsID)

	_, err = s.service.SetStatus(s.ctx, created.ID, models.StatusPending)
	s.Require().NoError(err)

	title := "x"
	_, err = s.service.Update(s.ctx, created.ID, UpdateInput{Fields: models.PassFieldsPatch{Title: &title}})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	pending, err := s.outbox.ListPending(s.ctx, 10)
	s.Require().NoError(err)
	s.Len(pending, 3)
}

func (s *PostgresServiceSuite) TestFailedTransactionLeavesNoRows() {
	boom := errors.New("boom")
	err := postgres.NewTx(s.pg.DB).RunInTx(s.ctx, func(txCtx context.Context) error {
		sub := &models.Submitter{Email: "rollback@example.com", FamilyName: "Пупкин", GivenName: "Василий", Phone: "+79123456789"}
		if err := s.submitters.Create(txCtx, sub); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.submitters.FindByEmail(s.ctx, "rollback@example.com")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresServiceSuite) TestMarkPublished() {
	_, err := s.service.Create(s.ctx, validInput("tourist@example.com"))
	s.Require().NoError(err)

	pending, err := s.outbox.ListPending(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Require().NoError(s.outbox.MarkPublished(s.ctx, pending[0].ID, time.Now()))

	pending, err = s.outbox.ListPending(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending)

	s.ErrorIs(s.outbox.MarkPublished(s.ctx, 9999, time.Now()), sentinel.ErrNotFound)
}
