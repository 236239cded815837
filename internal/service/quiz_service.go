package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl-arena/trivia-backend/internal/models"
	"github.com/rl-arena/trivia-backend/internal/repository"
)

const (
	DefaultPromptTTL   = 10 * time.Minute
	DefaultPromptLimit = 10000
)

type issuedPrompt struct {
	prompt   models.Prompt
	question models.Question
}

// promptBook remembers issued prompts until they expire. Prompts are added
// in issue order, so the oldest is always at the front of order.
type promptBook struct {
	mu      sync.Mutex
	entries map[string]issuedPrompt
	order   []string
	ttl     time.Duration
	limit   int
}

func newPromptBook(ttl time.Duration, limit int) *promptBook {
	return &promptBook{
		entries: make(map[string]issuedPrompt),
		ttl:     ttl,
		limit:   limit,
	}
}

func (b *promptBook) put(p issuedPrompt, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[p.prompt.ID] = p
	b.order = append(b.order, p.prompt.ID)
	b.prune(now)
}

func (b *promptBook) get(id string, now time.Time) (issuedPrompt, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.entries[id]
	if !ok || p.prompt.Expired(now, b.ttl) {
		return issuedPrompt{}, false
	}
	return p, true
}

// prune drops expired prompts and the oldest ones beyond the limit.
func (b *promptBook) prune(now time.Time) {
	drop := 0
	for drop < len(b.order) {
		p := b.entries[b.order[drop]]
		if !p.prompt.Expired(now, b.ttl) && len(b.order)-drop <= b.limit {
			break
		}
		delete(b.entries, b.order[drop])
		drop++
	}
	if drop > 0 {
		b.order = append(b.order[:0:0], b.order[drop:]...)
	}
}

func (b *promptBook) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// AnswerResult is the outcome of one judged answer.
type AnswerResult struct {
	PromptID      string             `json:"promptId"`
	QuestionID    string             `json:"questionId"`
	Correct       bool               `json:"correct"`
	CorrectOption int                `json:"correctOption"`
	Rank          *models.RankResult `json:"rank,omitempty"`
}

// QuizOption configures a QuizService.
type QuizOption func(*QuizService)

func WithPromptTTL(ttl time.Duration) QuizOption {
	return func(s *QuizService) {
		if ttl > 0 {
			s.book.ttl = ttl
		}
	}
}

func WithPromptLimit(n int) QuizOption {
	return func(s *QuizService) {
		if n > 0 {
			s.book.limit = n
		}
	}
}

func WithQuizClock(now func() time.Time) QuizOption {
	return func(s *QuizService) { s.now = now }
}

func WithQuizLogger(logger *zap.Logger) QuizOption {
	return func(s *QuizService) { s.logger = logger }
}

// WithAnswerHook is called after every recorded answer.
func WithAnswerHook(fn func(correct bool)) QuizOption {
	return func(s *QuizService) { s.onAnswer = fn }
}

// QuizService issues prompts from the rotator and judges answers to them.
type QuizService struct {
	rotator  *QuestionRotator
	ledger   repository.ScoreLedger
	ranks    *RankEngine
	book     *promptBook
	now      func() time.Time
	logger   *zap.Logger
	onAnswer func(bool)
}

func NewQuizService(rotator *QuestionRotator, ledger repository.ScoreLedger, ranks *RankEngine, opts ...QuizOption) *QuizService {
	s := &QuizService{
		rotator: rotator,
		ledger:  ledger,
		ranks:   ranks,
		book:    newPromptBook(DefaultPromptTTL, DefaultPromptLimit),
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask picks the session's next question and issues a prompt for it.
// An empty category means no filter.
func (s *QuizService) Ask(ctx context.Context, sessionID, userID, category string) (models.Prompt, models.Question, error) {
	var opts []NextOption
	if category != "" {
		opts = append(opts, WithCategory(category))
	}

	q, err := s.rotator.Next(ctx, sessionID, opts...)
	if err != nil {
		return models.Prompt{}, models.Question{}, err
	}

	prompt := models.Prompt{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		UserID:     userID,
		QuestionID: q.ID,
		IssuedAt:   s.now(),
	}
	s.book.put(issuedPrompt{prompt: prompt, question: q}, prompt.IssuedAt)

	return prompt, q, nil
}

// Answer judges option for the prompt, records the attempt and returns the
// user's new rank. A prompt is answerable once, by the user it was issued to.
func (s *QuizService) Answer(ctx context.Context, userID, promptID string, option int) (AnswerResult, error) {
	if option < 0 || option >= models.OptionCount {
		return AnswerResult{}, ErrInvalidOption
	}

	issued, ok := s.book.get(promptID, s.now())
	if !ok || issued.prompt.UserID != userID {
		return AnswerResult{}, ErrPromptNotFound
	}

	correct := issued.question.IsCorrect(option)
	attempt := models.Attempt{
		PromptID:       promptID,
		UserID:         userID,
		QuestionID:     issued.question.ID,
		SelectedOption: option,
		Correct:        correct,
		AnsweredAt:     s.now(),
	}
	if err := s.ledger.RecordAttempt(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrDuplicateAttempt) {
			return AnswerResult{}, ErrDuplicateAnswer
		}
		return AnswerResult{}, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	if s.onAnswer != nil {
		s.onAnswer(correct)
	}

	result := AnswerResult{
		PromptID:      promptID,
		QuestionID:    issued.question.ID,
		Correct:       correct,
		CorrectOption: issued.question.CorrectOption,
	}

	// 답안은 이미 기록됨: 순위 조회 실패는 응답에서 생략
	rank, err := s.ranks.RankOf(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to compute rank after answer",
			zap.String("userId", userID),
			zap.Error(err))
		return result, nil
	}
	result.Rank = &rank
	return result, nil
}

// PendingPrompts 만료되지 않은 프롬프트 수 (근사치)
func (s *QuizService) PendingPrompts() int {
	return s.book.len()
}
