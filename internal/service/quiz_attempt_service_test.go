package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/util"
)

func TestStartSnapshotsTimeLimitAndResumes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quiz, _ := env.seedQuiz(t, 1, func(q *model.Quiz) { q.TimeLimitMinutes = 10 })

	attempt, err := env.quiz.Start(ctx, quiz.ID, 7)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if attempt.TimeLimitSeconds != 600 {
		t.Fatalf("time limit snapshot = %d, want 600", attempt.TimeLimitSeconds)
	}
	if attempt.Status != model.AttemptInProgress {
		t.Fatalf("status = %s", attempt.Status)
	}

	// 断线重连：时限内再次 Start 返回同一次作答，不烧次数
	resumed, err := env.quiz.Start(ctx, quiz.ID, 7)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.ID != attempt.ID {
		t.Fatalf("resume created new attempt %s, want %s", resumed.ID, attempt.ID)
	}
}

func TestAttemptLimitEnforced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quiz, questions := env.seedQuiz(t, 1, func(q *model.Quiz) { q.MaxAttempts = 2 })

	for i := 0; i < 2; i++ {
		attempt, err := env.quiz.Start(ctx, quiz.ID, 7)
		if err != nil {
			t.Fatalf("start %d: %v", i+1, err)
		}
		if attempt.AttemptNumber != i+1 {
			t.Fatalf("attempt number = %d, want %d", attempt.AttemptNumber, i+1)
		}
		if _, err := env.quiz.Submit(ctx, attempt.ID, 7, partialMarks(questions)); err != nil {
			t.Fatalf("submit %d: %v", i+1, err)
		}
	}

	if _, err := env.quiz.Start(ctx, quiz.ID, 7); !errors.Is(err, util.ErrAttemptLimitExceeded) {
		t.Fatalf("third start err = %v, want ErrAttemptLimitExceeded", err)
	}

	// 另一个学员不受影响
	if _, err := env.quiz.Start(ctx, quiz.ID, 8); err != nil {
		t.Fatalf("other learner start: %v", err)
	}
}

func TestSubmitIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quiz, questions := env.seedQuiz(t, 1, nil)

	attempt, err := env.quiz.Start(ctx, quiz.ID, 7)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	first, err := env.quiz.Submit(ctx, attempt.ID, 7, fullMarks(questions))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if first.Score.ScorePercent != 100 || !first.Score.Passed {
		t.Fatalf("score = %d passed = %v", first.Score.ScorePercent, first.Score.Passed)
	}

	// 网络重试带了不同的答案也不能二次评分
	second, err := env.quiz.Submit(ctx, attempt.ID, 7, partialMarks(questions))
	if !errors.Is(err, util.ErrAlreadySubmitted) {
		t.Fatalf("repeat submit err = %v, want ErrAlreadySubmitted", err)
	}
	if second == nil || second.Score.ScorePercent != 100 {
		t.Fatalf("repeat submit should return recorded result, got %+v", second)
	}

	summary, err := env.quiz.ListAttempts(ctx, quiz.ID, 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summary.Attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(summary.Attempts))
	}
	if summary.CanRetry {
		t.Fatalf("passed learner should not retry")
	}
}

func TestProgressMonotonicAcrossAttempts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quiz, questions := env.seedQuiz(t, 1, nil)

	// 第一次不及格：33%
	a1, _ := env.quiz.Start(ctx, quiz.ID, 7)
	res1, err := env.quiz.Submit(ctx, a1.ID, 7, partialMarks(questions))
	if err != nil {
		t.Fatalf("submit 1: %v", err)
	}
	if res1.Score.Passed {
		t.Fatalf("33%% should not pass")
	}

	rec, err := env.progRepo.Find(7, quiz.ContentItemID)
	if err != nil || rec == nil {
		t.Fatalf("progress after fail: rec=%v err=%v", rec, err)
	}
	if !rec.Completed {
		t.Fatalf("completed should be true after any submission")
	}
	if rec.Passed == nil || *rec.Passed {
		t.Fatalf("passed = %v, want false", rec.Passed)
	}

	// 第二次满分：通过
	a2, _ := env.quiz.Start(ctx, quiz.ID, 7)
	if _, err := env.quiz.Submit(ctx, a2.ID, 7, fullMarks(questions)); err != nil {
		t.Fatalf("submit 2: %v", err)
	}
	rec, _ = env.progRepo.Find(7, quiz.ContentItemID)
	if rec.Passed == nil || !*rec.Passed || rec.Score == nil || *rec.Score != 100 {
		t.Fatalf("after pass: passed=%v score=%v", rec.Passed, rec.Score)
	}

	// 第三次又不及格：不降级已通过的记录
	a3, _ := env.quiz.Start(ctx, quiz.ID, 7)
	res3, err := env.quiz.Submit(ctx, a3.ID, 7, partialMarks(questions))
	if err != nil {
		t.Fatalf("submit 3: %v", err)
	}
	if res3.CanRetry {
		t.Fatalf("already passed overall, canRetry should be false")
	}
	rec, _ = env.progRepo.Find(7, quiz.ContentItemID)
	if rec.Passed == nil || !*rec.Passed || *rec.Score != 100 {
		t.Fatalf("downgraded after failing retry: passed=%v score=%v", rec.Passed, rec.Score)
	}
	if !rec.Completed {
		t.Fatalf("completed flag regressed")
	}
}

func TestExpireOverdueAutoSubmits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quiz, questions := env.seedQuiz(t, 1, func(q *model.Quiz) { q.TimeLimitMinutes = 10 })

	attempt, err := env.quiz.Start(ctx, quiz.ID, 7)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := env.quiz.SaveAnswers(ctx, attempt.ID, 7, partialMarks(questions)); err != nil {
		t.Fatalf("save answers: %v", err)
	}

	// 时限内扫描不动
	env.clock.Advance(5 * time.Minute)
	if n, err := env.quiz.ExpireOverdue(ctx); err != nil || n != 0 {
		t.Fatalf("early sweep: n=%d err=%v", n, err)
	}

	env.clock.Advance(6 * time.Minute)
	n, err := env.quiz.ExpireOverdue(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}

	stored, err := env.attemptRepo.FindByID(attempt.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != model.AttemptSubmitted || !stored.TimedOut {
		t.Fatalf("status=%s timedOut=%v", stored.Status, stored.TimedOut)
	}
	// 按已暂存的部分作答评分：1/3 分
	if stored.Score != 33 {
		t.Fatalf("score = %d, want 33", stored.Score)
	}
}

func TestLazyExpiryOnRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quiz, _ := env.seedQuiz(t, 1, func(q *model.Quiz) { q.TimeLimitMinutes = 1 })

	attempt, _ := env.quiz.Start(ctx, quiz.ID, 7)
	env.clock.Advance(2 * time.Minute)

	got, err := env.quiz.GetAttempt(ctx, attempt.ID, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.AttemptSubmitted || !got.TimedOut {
		t.Fatalf("lazy expiry missed: status=%s timedOut=%v", got.Status, got.TimedOut)
	}

	// 超时后的暂存被拒绝
	if err := env.quiz.SaveAnswers(ctx, attempt.ID, 7, AnswerSet{}); !errors.Is(err, util.ErrAlreadySubmitted) {
		t.Fatalf("save after expiry err = %v, want ErrAlreadySubmitted", err)
	}
}

func TestStartAfterExpiredAttempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quiz, _ := env.seedQuiz(t, 1, func(q *model.Quiz) { q.TimeLimitMinutes = 1 })

	first, _ := env.quiz.Start(ctx, quiz.ID, 7)
	env.clock.Advance(2 * time.Minute)

	// 旧作答先被结算，再开新的一次
	second, err := env.quiz.Start(ctx, quiz.ID, 7)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("expired attempt resumed instead of finalized")
	}
	if second.AttemptNumber != 2 {
		t.Fatalf("attempt number = %d, want 2", second.AttemptNumber)
	}

	stored, _ := env.attemptRepo.FindByID(first.ID)
	if stored.Status != model.AttemptSubmitted || !stored.TimedOut {
		t.Fatalf("first attempt not finalized: %s", stored.Status)
	}
}

func TestAttemptOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quiz, questions := env.seedQuiz(t, 1, nil)

	attempt, _ := env.quiz.Start(ctx, quiz.ID, 7)
	if _, err := env.quiz.Submit(ctx, attempt.ID, 8, fullMarks(questions)); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("foreign submit err = %v, want ErrPermissionDenied", err)
	}
	if _, err := env.quiz.GetAttempt(ctx, attempt.ID, 8); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("foreign read err = %v, want ErrPermissionDenied", err)
	}
}

func TestGetQuizForLearnerHidesAnswers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	quiz, _ := env.seedQuiz(t, 1, nil)

	view, err := env.quiz.GetQuizForLearner(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(view.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(view.Questions))
	}
	for _, q := range view.Questions {
		if q.Points <= 0 || q.Content == "" {
			t.Fatalf("question view incomplete: %+v", q)
		}
	}
}
