package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vytor/lingorun/internal/db"
	"github.com/vytor/lingorun/internal/errors"
	"github.com/vytor/lingorun/internal/models"
	"github.com/vytor/lingorun/internal/repository"
	"github.com/vytor/lingorun/internal/repository/sqlite"
	"github.com/vytor/lingorun/internal/services"
	"github.com/vytor/lingorun/internal/testutil"
)

type ReviewServiceSuite struct {
	suite.Suite
	db      *db.DB
	store   repository.Store
	service services.ReviewService
	now     time.Time
}

func (s *ReviewServiceSuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.store = sqlite.NewStore(s.db.DB)
	s.now = time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	s.service = services.NewReviewService(s.store, func() time.Time { return s.now })
}

func (s *ReviewServiceSuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *ReviewServiceSuite) TestEnqueue_Idempotent() {
	ctx := context.Background()

	first, err := s.service.Enqueue(ctx, 1, 100)
	s.Require().NoError(err)
	s.Assert().Equal(models.InitialIntervalDays, first.IntervalDays)
	s.Assert().Equal(models.InitialEaseFactor, first.EaseFactor)
	s.Assert().Equal(0, first.Repetitions)
	s.Assert().True(first.NextDueAt.Equal(s.now.AddDate(0, 0, 1)))

	s.now = s.now.Add(time.Hour)
	second, err := s.service.Enqueue(ctx, 1, 100)
	s.Require().NoError(err)
	s.Assert().Equal(first.ID, second.ID)
	s.Assert().True(second.NextDueAt.Equal(first.NextDueAt))

	cards, err := s.service.List(ctx, 1)
	s.Require().NoError(err)
	s.Assert().Len(cards, 1)
}

func (s *ReviewServiceSuite) TestSubmit_SchedulesAndResets() {
	ctx := context.Background()
	_, err := s.service.Enqueue(ctx, 1, 5)
	s.Require().NoError(err)

	card, err := s.service.Submit(ctx, 1, 5, 4)
	s.Require().NoError(err)
	s.Assert().Equal(1, card.Repetitions)
	s.Assert().Equal(1, card.IntervalDays)

	card, err = s.service.Submit(ctx, 1, 5, 5)
	s.Require().NoError(err)
	s.Assert().Equal(2, card.Repetitions)
	s.Assert().Equal(6, card.IntervalDays)
	s.Assert().True(card.NextDueAt.Equal(s.now.AddDate(0, 0, 6)))

	card, err = s.service.Submit(ctx, 1, 5, 1)
	s.Require().NoError(err)
	s.Assert().Equal(0, card.Repetitions)
	s.Assert().Equal(1, card.IntervalDays)
	s.Assert().GreaterOrEqual(card.EaseFactor, models.MinEaseFactor)
}

func (s *ReviewServiceSuite) TestSubmit_Errors() {
	ctx := context.Background()

	_, err := s.service.Submit(ctx, 1, 5, 3)
	s.Assert().True(errors.HasCode(err, errors.ErrCodeNotFound))

	_, err = s.service.Submit(ctx, 1, 5, 6)
	s.Assert().True(errors.HasCode(err, errors.ErrCodeValidation))
	_, err = s.service.Submit(ctx, 1, 5, -1)
	s.Assert().True(errors.HasCode(err, errors.ErrCodeValidation))
}

func (s *ReviewServiceSuite) TestDue_AscendingAndCounted() {
	ctx := context.Background()
	_, err := s.service.Enqueue(ctx, 1, 1)
	s.Require().NoError(err)
	s.now = s.now.Add(2 * time.Hour)
	_, err = s.service.Enqueue(ctx, 1, 2)
	s.Require().NoError(err)
	_, err = s.service.Enqueue(ctx, 2, 3)
	s.Require().NoError(err)

	at := s.now.AddDate(0, 0, 1)
	due, err := s.service.Due(ctx, 1, at)
	s.Require().NoError(err)
	s.Require().Len(due, 2)
	s.Assert().Equal(int64(1), due[0].SubjectID)
	s.Assert().Equal(int64(2), due[1].SubjectID)

	n, err := s.service.DueCount(ctx, 1, at)
	s.Require().NoError(err)
	s.Assert().Equal(2, n)

	n, err = s.service.DueCount(ctx, 1, at.Add(-3*time.Hour))
	s.Require().NoError(err)
	s.Assert().Equal(0, n)
}

func TestReviewServiceSuite(t *testing.T) {
	suite.Run(t, new(ReviewServiceSuite))
}
