package services_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vytor/lingorun/internal/db"
	"github.com/vytor/lingorun/internal/errors"
	"github.com/vytor/lingorun/internal/models"
	"github.com/vytor/lingorun/internal/repository"
	"github.com/vytor/lingorun/internal/repository/sqlite"
	"github.com/vytor/lingorun/internal/services"
	"github.com/vytor/lingorun/internal/testutil"
	"github.com/vytor/lingorun/internal/testutil/mocks"
)

const threeSentences = "Tôi dậy sớm. Tôi uống cà phê. Tôi đi làm."

func scored(acc int, errs ...models.TranslationError) *models.Feedback {
	if errs == nil {
		errs = []models.TranslationError{}
	}
	return &models.Feedback{
		Scores:             models.ScoreBreakdown{Grammar: acc, WordChoice: acc, Naturalness: acc},
		Errors:             errs,
		CorrectTranslation: "reference",
	}
}

type SessionServiceSuite struct {
	suite.Suite
	db          *db.DB
	store       repository.Store
	evaluator   *mocks.MockEvaluator
	service     services.SessionService
	paragraphID int64
	now         time.Time
}

func (s *SessionServiceSuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.store = sqlite.NewStore(s.db.DB)
	s.evaluator = new(mocks.MockEvaluator)
	s.now = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	s.service = services.NewSessionService(s.store, s.evaluator, time.Second, func() time.Time { return s.now })
	s.paragraphID = testutil.SeedParagraph(s.T(), s.store.Repos().Paragraphs, "Morning", threeSentences, models.BucketEasy)
}

func (s *SessionServiceSuite) TearDownTest() {
	testutil.MustClose(s.T(), s.db)
}

func (s *SessionServiceSuite) newSession() *models.PracticeSession {
	session, err := s.service.CreateSession(context.Background(), 1, s.paragraphID)
	s.Require().NoError(err)
	return session
}

func (s *SessionServiceSuite) expectScore(acc int) {
	s.evaluator.On("Evaluate", mock.Anything, mock.Anything).Return(scored(acc), nil).Once()
}

func (s *SessionServiceSuite) TestCreateSession_ResumesInProgress() {
	first := s.newSession()
	s.Assert().Equal(models.SessionInProgress, first.Status)
	s.Assert().Equal(models.InitialSkipCredits, first.SkipCredits)

	second := s.newSession()
	s.Assert().Equal(first.ID, second.ID)
}

func (s *SessionServiceSuite) TestCreateSession_UnknownParagraph() {
	_, err := s.service.CreateSession(context.Background(), 1, 999)
	s.Assert().True(errors.HasCode(err, errors.ErrCodeNotFound))
}

func (s *SessionServiceSuite) TestSubmit_PassAdvancesAndAwardsPoints() {
	ctx := context.Background()
	session := s.newSession()
	s.expectScore(92)

	res, err := s.service.Submit(ctx, services.SubmitRequest{SessionID: session.ID, Text: "I wake up early."})
	s.Require().NoError(err)

	s.Assert().Equal(20, res.Attempt.Points)
	s.Assert().Equal(1, res.NextIndex)
	s.Assert().Equal("Tôi uống cà phê.", res.NextSentence)
	s.Assert().False(res.Completed)
	s.Assert().Equal(20, res.Session.TotalPoints)

	due, err := s.store.Repos().Reviews.CountDue(ctx, 1, s.now.AddDate(0, 0, 2))
	s.Require().NoError(err)
	s.Assert().Zero(due)
}

func (s *SessionServiceSuite) TestSubmit_PassesPriorTranslationsAndContext() {
	ctx := context.Background()
	session := s.newSession()
	s.expectScore(95)
	_, err := s.service.Submit(ctx, services.SubmitRequest{SessionID: session.ID, Text: "I wake up early."})
	s.Require().NoError(err)

	s.evaluator.On("Evaluate", mock.Anything, mock.MatchedBy(func(r models.EvaluationRequest) bool {
		return r.Original == "Tôi uống cà phê." &&
			r.ParagraphContext == threeSentences &&
			len(r.PriorTranslations) == 1 && r.PriorTranslations[0] == "reference"
	})).Return(scored(95), nil).Once()

	_, err = s.service.Submit(ctx, services.SubmitRequest{SessionID: session.ID, Text: "I drink coffee."})
	s.Require().NoError(err)
	s.evaluator.AssertExpectations(s.T())
}

func (s *SessionServiceSuite) TestSubmit_FailStaysAndQueuesReview() {
	ctx := context.Background()
	session := s.newSession()
	s.expectScore(65)

	res, err := s.service.Submit(ctx, services.SubmitRequest{SessionID: session.ID, Text: "I up early."})
	s.Require().NoError(err)
	s.Assert().Equal(5, res.Attempt.Points)
	s.Assert().Equal(0, res.NextIndex)
	s.Assert().Equal(5, res.Session.TotalPoints)

	card, err := s.store.Repos().Reviews.Find(ctx, 1, res.Attempt.ID)
	s.Require().NoError(err)
	s.Require().NotNil(card)
	s.Assert().Equal(1, card.IntervalDays)
	s.Assert().Equal(2.5, card.EaseFactor)
	s.Assert().True(card.NextDueAt.Equal(s.now.AddDate(0, 0, 1)))
}

func (s *SessionServiceSuite) TestSubmit_RetryNeverMovesIndexOrPoints() {
	ctx := context.Background()
	session := s.newSession()
	s.expectScore(50)
	first, err := s.service.Submit(ctx, services.SubmitRequest{SessionID: session.ID, Text: "bad"})
	s.Require().NoError(err)

	for depth := 1; depth <= 2; depth++ {
		s.expectScore(100)
		parent := first.Attempt.ID
		res, err := s.service.Submit(ctx, services.SubmitRequest{
			SessionID: session.ID, Text: "I wake up early.", IsRetry: true, ParentAttemptID: &parent,
		})
		s.Require().NoError(err)
		s.Assert().Equal(0, res.Attempt.Points)
		s.Assert().Equal(depth, res.Attempt.RetryDepth)
		s.Assert().Equal(0, res.Session.CurrentSentenceIndex)
		s.Assert().Equal(first.Session.TotalPoints, res.Session.TotalPoints)
		first.Attempt = res.Attempt
	}

	cards, err := s.store.Repos().Reviews.ListByUser(ctx, 1)
	s.Require().NoError(err)
	s.Assert().Len(cards, 1, "retries never enqueue reviews")
}

func (s *SessionServiceSuite) TestSubmit_RetryUnknownParent() {
	session := s.newSession()
	missing := int64(4242)
	_, err := s.service.Submit(context.Background(), services.SubmitRequest{
		SessionID: session.ID, Text: "x", IsRetry: true, ParentAttemptID: &missing,
	})
	s.Assert().True(errors.HasCode(err, errors.ErrCodeNotFound))
}

func (s *SessionServiceSuite) TestSubmit_EvaluatorFailureYieldsZeroScore() {
	ctx := context.Background()
	session := s.newSession()
	s.evaluator.On("Evaluate", mock.Anything, mock.Anything).Return(nil, stderrors.New("timeout")).Once()

	res, err := s.service.Submit(ctx, services.SubmitRequest{SessionID: session.ID, Text: "I wake up early."})
	s.Require().NoError(err)
	s.Assert().Equal(0.0, res.Attempt.Accuracy)
	s.Assert().Equal(2, res.Attempt.Points)
	s.Assert().Equal([]string{models.UnavailableFeedbackMessage}, res.Feedback.Suggestions)
	s.Assert().Equal(0, res.NextIndex)
}

func (s *SessionServiceSuite) TestSubmit_LastSentenceCompletesEvenWhenFailed() {
	ctx := context.Background()
	session := s.newSession()
	s.expectScore(90)
	s.expectScore(85)
	s.evaluator.On("Evaluate", mock.Anything, mock.Anything).Return(scored(40,
		models.TranslationError{Type: "GRAMMAR_TENSE", QuickFix: "go -> went", Correction: "went"},
		models.TranslationError{Type: "WORD_CHOICE", Correction: "office"},
		models.TranslationError{Type: "naturalness"},
	), nil).Once()

	for _, text := range []string{"one", "two", "three"} {
		_, err := s.service.Submit(ctx, services.SubmitRequest{SessionID: session.ID, Text: text})
		s.Require().NoError(err)
	}

	got, err := s.service.GetSession(ctx, session.ID)
	s.Require().NoError(err)
	s.Assert().Equal(models.SessionCompleted, got.Status)
	s.Require().NotNil(got.CompletedAt)
	s.Assert().Equal(20+15+2, got.TotalPoints)

	summary, err := s.service.Summary(ctx, session.ID)
	s.Require().NoError(err)
	s.Assert().Equal(3, summary.TotalSentences)
	s.Assert().Equal(3, summary.CompletedSentences)
	s.Assert().Equal(3, summary.TotalErrors)
	s.Assert().Equal(1, summary.GrammarErrors)
	s.Assert().Equal(1, summary.WordChoiceErrors)
	s.Assert().Equal(1, summary.NaturalnessErrors)
	s.Assert().InDelta(215.0/3, summary.AverageAccuracy, 0.001)
	s.Assert().Equal("three", summary.Errors[0].Submitted)

	bal, err := s.store.Repos().Ledger.Get(ctx, 1)
	s.Require().NoError(err)
	s.Assert().Equal(37, bal.Points)
	s.Assert().Equal(services.SessionBonusCredits, bal.Credits)
	s.Assert().Equal(1, bal.SessionsCompleted)

	_, err = s.service.Submit(ctx, services.SubmitRequest{SessionID: session.ID, Text: "again"})
	s.Assert().True(errors.HasCode(err, errors.ErrCodeInvalidState))
}

func (s *SessionServiceSuite) TestSkip_ConsumesExactlyOneCredit() {
	ctx := context.Background()
	session := s.newSession()

	res, err := s.service.Skip(ctx, session.ID)
	s.Require().NoError(err)
	s.Assert().True(res.Attempt.Skipped)
	s.Assert().Nil(res.Attempt.SubmittedText)
	s.Assert().Equal(0, res.Attempt.Points)
	s.Assert().Equal(models.InitialSkipCredits-1, res.Session.SkipCredits)
	s.Assert().Equal(1, res.NextIndex)
}

func (s *SessionServiceSuite) TestSkip_NoCredits() {
	ctx := context.Background()
	session := s.newSession()

	stored, err := s.store.Repos().Sessions.Get(ctx, session.ID)
	s.Require().NoError(err)
	stored.SkipCredits = 0
	s.Require().NoError(s.store.Repos().Sessions.Update(ctx, *stored))

	_, err = s.service.Skip(ctx, session.ID)
	s.Assert().True(errors.HasCode(err, errors.ErrCodeInsufficientCredits))
}

func (s *SessionServiceSuite) TestSkip_LastSentenceCompletes() {
	ctx := context.Background()
	session := s.newSession()
	for i := 0; i < 3; i++ {
		_, err := s.service.Skip(ctx, session.ID)
		s.Require().NoError(err)
	}

	progress, err := s.service.Progress(ctx, session.ID)
	s.Require().NoError(err)
	s.Assert().Equal(models.SessionCompleted, progress.Status)
	s.Assert().Equal(3, progress.CompletedSentences)
	s.Assert().Equal(100.0, progress.Percentage)
	s.Assert().Equal(0.0, progress.AverageAccuracy)

	_, err = s.service.Skip(ctx, session.ID)
	s.Assert().True(errors.HasCode(err, errors.ErrCodeInvalidState))
}

func (s *SessionServiceSuite) TestProgress_CountsDistinctIndices() {
	ctx := context.Background()
	session := s.newSession()
	s.expectScore(60)
	s.expectScore(100)

	first, err := s.service.Submit(ctx, services.SubmitRequest{SessionID: session.ID, Text: "a"})
	s.Require().NoError(err)
	parent := first.Attempt.ID
	_, err = s.service.Submit(ctx, services.SubmitRequest{SessionID: session.ID, Text: "b", IsRetry: true, ParentAttemptID: &parent})
	s.Require().NoError(err)

	progress, err := s.service.Progress(ctx, session.ID)
	s.Require().NoError(err)
	s.Assert().Equal(1, progress.CompletedSentences)
	s.Assert().Equal(3, progress.TotalSentences)
	s.Assert().InDelta(100.0/3, progress.Percentage, 0.001)
	s.Assert().Equal(80.0, progress.AverageAccuracy)
	s.Assert().Equal(5, progress.TotalPoints)
}

func (s *SessionServiceSuite) TestSummary_RequiresCompletion() {
	session := s.newSession()
	_, err := s.service.Summary(context.Background(), session.ID)
	s.Assert().True(errors.HasCode(err, errors.ErrCodeInvalidState))

	_, err = s.service.Summary(context.Background(), 999)
	s.Assert().True(errors.HasCode(err, errors.ErrCodeNotFound))
}

func (s *SessionServiceSuite) TestSubmit_EmptyText() {
	session := s.newSession()
	_, err := s.service.Submit(context.Background(), services.SubmitRequest{SessionID: session.ID, Text: "   "})
	s.Assert().True(errors.HasCode(err, errors.ErrCodeValidation))
}

func TestSessionServiceSuite(t *testing.T) {
	suite.Run(t, new(SessionServiceSuite))
}
