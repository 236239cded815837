package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl-arena/trivia-backend/internal/models"
)

type stubQuestionRepo struct {
	mu        sync.Mutex
	questions []models.Question
	err       error
}

func (s *stubQuestionRepo) set(qs []models.Question, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions, s.err = qs, err
}

func (s *stubQuestionRepo) AllQuestions(ctx context.Context) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Question(nil), s.questions...), s.err
}

func (s *stubQuestionRepo) ByCategory(ctx context.Context, category string) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Question
	for _, q := range s.questions {
		if q.Category == category {
			out = append(out, q)
		}
	}
	return out, s.err
}

func question(id, category string) models.Question {
	return models.Question{
		ID:            id,
		Text:          "Question " + id,
		Options:       [models.OptionCount]string{"a", "b", "c", "d"},
		CorrectOption: 1,
		Category:      category,
	}
}

func questions(n int) []models.Question {
	out := make([]models.Question, n)
	for i := range out {
		out[i] = question(fmt.Sprintf("q%03d", i), "")
	}
	return out
}

func newLoadedRotator(t *testing.T, qs []models.Question, opts ...RotatorOption) (*QuestionRotator, *stubQuestionRepo) {
	t.Helper()
	repo := &stubQuestionRepo{questions: qs}
	r := NewQuestionRotator(repo, opts...)
	require.NoError(t, r.Reload(context.Background()))
	return r, repo
}

func TestQuestionRotator_NoRepeatWithinCycle(t *testing.T) {
	// 무작위 풀 크기로 반복 검증
	for trial := 0; trial < 25; trial++ {
		n := 2 + rand.Intn(120)
		r, _ := newLoadedRotator(t, questions(n))

		seen := make(map[string]bool, n)
		for i := 0; i < n; i++ {
			q, err := r.Next(context.Background(), "session")
			require.NoError(t, err)
			require.False(t, seen[q.ID], "pool of %d repeated %s after %d calls", n, q.ID, i)
			seen[q.ID] = true
		}
		assert.Len(t, seen, n)
	}
}

func TestQuestionRotator_NoImmediateRepeatAcrossRefills(t *testing.T) {
	for _, n := range []int{2, 3, 7, 50, 51, 80} {
		t.Run(fmt.Sprintf("pool_%d", n), func(t *testing.T) {
			r, _ := newLoadedRotator(t, questions(n))

			prev := ""
			for i := 0; i < n*6; i++ {
				q, err := r.Next(context.Background(), "s")
				require.NoError(t, err)
				assert.NotEqual(t, prev, q.ID, "call %d", i)
				prev = q.ID
			}
		})
	}
}

func TestQuestionRotator_RecentSpansRefills(t *testing.T) {
	// 풀이 recent 용량보다 크면 다음 사이클은 최근 50개를 피해서 시작
	n := 80
	r, _ := newLoadedRotator(t, questions(n))
	ctx := context.Background()

	var firstCycle []string
	for i := 0; i < n; i++ {
		q, err := r.Next(ctx, "s")
		require.NoError(t, err)
		firstCycle = append(firstCycle, q.ID)
	}
	recent := make(map[string]bool)
	for _, id := range firstCycle[n-RecentCapacity:] {
		recent[id] = true
	}

	for i := 0; i < n-RecentCapacity; i++ {
		q, err := r.Next(ctx, "s")
		require.NoError(t, err)
		assert.False(t, recent[q.ID], "recently served %s reused", q.ID)
	}
}

func TestQuestionRotator_EdgePools(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		r, _ := newLoadedRotator(t, nil)
		_, err := r.Next(context.Background(), "s")
		assert.ErrorIs(t, err, ErrQuestionPoolEmpty)
	})

	t.Run("never loaded", func(t *testing.T) {
		r := NewQuestionRotator(&stubQuestionRepo{})
		_, err := r.Next(context.Background(), "s")
		assert.ErrorIs(t, err, ErrQuestionPoolEmpty)
	})

	t.Run("single", func(t *testing.T) {
		r, _ := newLoadedRotator(t, questions(1))
		for i := 0; i < 5; i++ {
			q, err := r.Next(context.Background(), "s")
			require.NoError(t, err)
			assert.Equal(t, "q000", q.ID)
		}
	})
}

func TestQuestionRotator_Category(t *testing.T) {
	qs := []models.Question{
		question("h1", "history"),
		question("h2", "history"),
		question("s1", "science"),
		question("x1", ""),
	}
	r, _ := newLoadedRotator(t, qs)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		q, err := r.Next(ctx, "s", WithCategory("history"))
		require.NoError(t, err)
		assert.Equal(t, "history", q.Category)
	}

	q, err := r.Next(ctx, "s", WithCategory(" science "))
	require.NoError(t, err)
	assert.Equal(t, "s1", q.ID)

	tests := []string{"", "   ", "geography"}
	for _, name := range tests {
		_, err := r.Next(ctx, "s", WithCategory(name))
		assert.ErrorIs(t, err, ErrInvalidCategory, "category %q", name)
	}

	// 카테고리 요청은 세션 상태를 만들지 않음
	assert.Zero(t, r.ActiveSessions())
	assert.Equal(t, []string{"history", "science"}, r.Categories())
}

func TestQuestionRotator_SessionsIndependent(t *testing.T) {
	r, _ := newLoadedRotator(t, questions(10))
	ctx := context.Background()

	a := make(map[string]bool)
	b := make(map[string]bool)
	for i := 0; i < 10; i++ {
		qa, err := r.Next(ctx, "a")
		require.NoError(t, err)
		qb, err := r.Next(ctx, "b")
		require.NoError(t, err)
		a[qa.ID] = true
		b[qb.ID] = true
	}
	assert.Len(t, a, 10)
	assert.Len(t, b, 10)
	assert.Equal(t, 2, r.ActiveSessions())

	assert.True(t, r.Evict("a"))
	assert.False(t, r.Evict("a"))
	assert.Equal(t, 1, r.ActiveSessions())
}

func TestQuestionRotator_ResetHook(t *testing.T) {
	resets := 0
	r, _ := newLoadedRotator(t, questions(3), WithResetHook(func() { resets++ }))

	for i := 0; i < 9; i++ {
		_, err := r.Next(context.Background(), "s")
		require.NoError(t, err)
	}
	// 첫 사이클 3개, 이후 리필은 직전 문제 제외(2개)씩
	assert.Equal(t, 4, resets)
}

func TestQuestionRotator_Reload(t *testing.T) {
	r, repo := newLoadedRotator(t, questions(4))
	ctx := context.Background()

	_, err := r.Next(ctx, "s")
	require.NoError(t, err)

	// 남은 풀에 있던 id가 삭제되어도 반환되지 않음
	repo.set([]models.Question{question("q000", ""), question("new", "")}, nil)
	require.NoError(t, r.Reload(ctx))
	for i := 0; i < 10; i++ {
		q, err := r.Next(ctx, "s")
		require.NoError(t, err)
		assert.Contains(t, []string{"q000", "new"}, q.ID)
	}

	// 실패 시 이전 카탈로그 유지
	repo.set(nil, errStoreDown)
	assert.ErrorIs(t, r.Reload(ctx), errStoreDown)
	assert.Equal(t, 2, r.Stats().Questions)
}

func TestQuestionRotator_SkipsInvalidQuestions(t *testing.T) {
	bad := question("bad", "")
	bad.CorrectOption = 7
	blank := question("", "")

	r, _ := newLoadedRotator(t, []models.Question{question("ok", ""), bad, blank})
	assert.Equal(t, 1, r.Stats().Questions)
}

func TestQuestionRotator_Concurrent(t *testing.T) {
	r, _ := newLoadedRotator(t, questions(20))
	ctx := context.Background()

	var wg sync.WaitGroup
	for s := 0; s < 8; s++ {
		wg.Add(1)
		go func(session string) {
			defer wg.Done()
			seen := make(map[string]bool)
			for i := 0; i < 20; i++ {
				q, err := r.Next(ctx, session)
				if !assert.NoError(t, err) {
					return
				}
				assert.False(t, seen[q.ID])
				seen[q.ID] = true
			}
		}(fmt.Sprintf("session-%d", s))
	}
	wg.Wait()
	assert.Equal(t, 8, r.ActiveSessions())
}

func TestQuestionRotator_StartStop(t *testing.T) {
	repo := &stubQuestionRepo{}
	r := NewQuestionRotator(repo)

	r.Start(10 * time.Millisecond)
	r.Start(10 * time.Millisecond) // 중복 Start 무시
	repo.set(questions(3), nil)

	assert.Eventually(t, func() bool {
		return r.Stats().Questions == 3
	}, time.Second, 10*time.Millisecond)

	r.Stop()
	r.Stop()
}
