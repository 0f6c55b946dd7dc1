package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"
	"course_platform_backend/pkg/logger"
	"course_platform_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QuizAttemptService 管理测验作答的生命周期：
// in_progress → submitted（终态），提交由学员触发或超时自动触发。
type QuizAttemptService struct {
	CatalogRepo *repository.CatalogRepository
	AttemptRepo *repository.QuizAttemptRepository
	ProgressSvc *ProgressService
	Clock       Clock
}

func NewQuizAttemptService(catalogRepo *repository.CatalogRepository, attemptRepo *repository.QuizAttemptRepository, progressSvc *ProgressService, clock Clock) *QuizAttemptService {
	return &QuizAttemptService{
		CatalogRepo: catalogRepo,
		AttemptRepo: attemptRepo,
		ProgressSvc: progressSvc,
		Clock:       clock,
	}
}

// SubmitResult 提交后的完整结果
type SubmitResult struct {
	Attempt  *model.QuizAttempt `json:"attempt"`
	Score    ScoreResult        `json:"score"`
	CanRetry bool               `json:"canRetry"`
}

// Start 开始一次作答。已有进行中的作答时直接返回它（断线重连不烧次数）；
// 已用完 maxAttempts 时返回 ErrAttemptLimitExceeded。时限在此刻从测验
// 定义快照，之后编辑测验不影响这次作答。
func (s *QuizAttemptService) Start(ctx context.Context, quizID, learnerID uint) (*model.QuizAttempt, error) {
	quiz, err := s.findQuiz(quizID)
	if err != nil {
		return nil, err
	}

	// 1. 进行中的作答：未超时则恢复，超时则先结算再继续
	existing, err := s.AttemptRepo.FindInProgress(quizID, learnerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.Expired(s.Clock.Now()) {
			return existing, nil
		}
		if _, err := s.expireAttempt(ctx, existing); err != nil {
			return nil, err
		}
	}

	// 2. 次数限制（0 = 不限）
	count, err := s.AttemptRepo.CountByQuizAndLearner(quizID, learnerID)
	if err != nil {
		return nil, err
	}
	if quiz.MaxAttempts > 0 && int(count) >= quiz.MaxAttempts {
		return nil, util.ErrAttemptLimitExceeded
	}

	// 3. 创建新作答
	attempt := &model.QuizAttempt{
		QuizID:           quizID,
		LearnerID:        learnerID,
		AttemptNumber:    int(count) + 1,
		Status:           model.AttemptInProgress,
		StartedAt:        s.Clock.Now(),
		Answers:          "{}",
		TimeLimitSeconds: quiz.TimeLimitMinutes * 60,
	}
	if err := s.AttemptRepo.Create(attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// SaveAnswers 作答过程中的暂存。已提交的作答拒绝；已超时的作答先自动
// 结算（用之前暂存的答案）再返回 ErrAlreadySubmitted。
func (s *QuizAttemptService) SaveAnswers(ctx context.Context, attemptID string, learnerID uint, answers AnswerSet) error {
	attempt, err := s.findOwnedAttempt(attemptID, learnerID)
	if err != nil {
		return err
	}
	if attempt.Status == model.AttemptSubmitted {
		return util.ErrAlreadySubmitted
	}
	if attempt.Expired(s.Clock.Now()) {
		if _, err := s.expireAttempt(ctx, attempt); err != nil {
			return err
		}
		return util.ErrAlreadySubmitted
	}

	data, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	ok, err := s.AttemptRepo.SaveAnswers(attempt.ID, string(data))
	if err != nil {
		return err
	}
	if !ok {
		return util.ErrAlreadySubmitted
	}
	return nil
}

// Submit 提交并评分。重复提交（双击、网络重试）返回已记录的结果和
// ErrAlreadySubmitted，控制器按成功响应处理，绝不会二次评分。
// 超时后的提交按超时结算：用暂存的答案，部分作答是预期行为不是错误。
func (s *QuizAttemptService) Submit(ctx context.Context, attemptID string, learnerID uint, answers AnswerSet) (*SubmitResult, error) {
	attempt, err := s.findOwnedAttempt(attemptID, learnerID)
	if err != nil {
		return nil, err
	}
	if attempt.Status == model.AttemptSubmitted {
		res, rerr := s.resultFor(ctx, attempt)
		if rerr != nil {
			return nil, rerr
		}
		return res, util.ErrAlreadySubmitted
	}

	now := s.Clock.Now()
	timedOut := attempt.Expired(now)

	effective := answers
	if timedOut || effective == nil {
		effective = decodeAnswers(attempt.Answers)
	}

	return s.finalize(ctx, attempt, effective, timedOut)
}

// ExpireOverdue 后台扫描：把所有超过时限仍在进行中的作答自动提交，
// 用已暂存的答案评分。由 app 的定时器周期调用。
func (s *QuizAttemptService) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.Clock.Now()
	candidates, err := s.AttemptRepo.ListExpirable(now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range candidates {
		attempt := candidates[i]
		if !attempt.Expired(now) {
			continue
		}
		if _, err := s.expireAttempt(ctx, &attempt); err != nil {
			logger.Log.Error("auto-submit of expired attempt failed",
				zap.String("attemptId", attempt.ID), zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}

// GetAttempt 返回单次作答；超时未结算的作答先懒结算，保证读到的状态
// 与扫描周期无关。
func (s *QuizAttemptService) GetAttempt(ctx context.Context, attemptID string, learnerID uint) (*model.QuizAttempt, error) {
	attempt, err := s.findOwnedAttempt(attemptID, learnerID)
	if err != nil {
		return nil, err
	}
	if attempt.Status == model.AttemptInProgress && attempt.Expired(s.Clock.Now()) {
		res, err := s.expireAttempt(ctx, attempt)
		if err != nil {
			return nil, err
		}
		return res.Attempt, nil
	}
	return attempt, nil
}

// AttemptSummary 学员视角的作答历史
type AttemptSummary struct {
	Attempts []model.QuizAttempt `json:"attempts"`
	CanRetry bool                `json:"canRetry"`
}

func (s *QuizAttemptService) ListAttempts(ctx context.Context, quizID, learnerID uint) (*AttemptSummary, error) {
	quiz, err := s.findQuiz(quizID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.AttemptRepo.ListByQuizAndLearner(quizID, learnerID)
	if err != nil {
		return nil, err
	}

	passed := false
	submitted := 0
	for _, a := range attempts {
		if a.Status == model.AttemptSubmitted {
			submitted++
			if a.Passed {
				passed = true
			}
		}
	}

	return &AttemptSummary{
		Attempts: attempts,
		CanRetry: canRetry(quiz, submitted, passed),
	}, nil
}

// LearnerQuestion 学员作答视图，不含正确答案
type LearnerQuestion struct {
	ID           uint            `json:"id"`
	QuestionType string          `json:"questionType"`
	Content      string          `json:"content"`
	Options      json.RawMessage `json:"options"`
	Points       int             `json:"points"`
}

type LearnerQuizView struct {
	Quiz      *model.Quiz       `json:"quiz"`
	Questions []LearnerQuestion `json:"questions"`
}

// GetQuizForLearner 返回作答用的测验视图。randomizeQuestions 打开时
// 打乱下发顺序；顺序只影响展示，评分按题目ID对齐。
func (s *QuizAttemptService) GetQuizForLearner(ctx context.Context, quizID uint) (*LearnerQuizView, error) {
	quiz, err := s.findQuiz(quizID)
	if err != nil {
		return nil, err
	}
	questions, err := s.CatalogRepo.ListQuizQuestions(quizID)
	if err != nil {
		return nil, err
	}

	view := &LearnerQuizView{
		Quiz:      quiz,
		Questions: make([]LearnerQuestion, 0, len(questions)),
	}
	for _, q := range questions {
		view.Questions = append(view.Questions, LearnerQuestion{
			ID:           q.ID,
			QuestionType: q.QuestionType,
			Content:      q.Content,
			Options:      json.RawMessage(q.Options),
			Points:       q.Points,
		})
	}

	if quiz.RandomizeQuestions {
		rand.Shuffle(len(view.Questions), func(i, j int) {
			view.Questions[i], view.Questions[j] = view.Questions[j], view.Questions[i]
		})
	}
	return view, nil
}

// finalize 完成一次终态转移：评分、守卫更新、派生进度。
func (s *QuizAttemptService) finalize(ctx context.Context, attempt *model.QuizAttempt, answers AnswerSet, timedOut bool) (*SubmitResult, error) {
	quiz, err := s.findQuiz(attempt.QuizID)
	if err != nil {
		return nil, err
	}
	questions, err := s.CatalogRepo.ListQuizQuestions(attempt.QuizID)
	if err != nil {
		return nil, err
	}

	score := ScoreQuiz(quiz, questions, answers)

	data, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	attempt.Answers = string(data)
	attempt.Score = score.ScorePercent
	attempt.Passed = score.Passed
	attempt.SubmittedAt = &now
	attempt.TimedOut = timedOut
	attempt.Status = model.AttemptSubmitted

	// 终态写入前以状态守卫重查：并发的重复提交只有一方生效
	ok, err := s.AttemptRepo.FinalizeSubmission(attempt)
	if err != nil {
		return nil, err
	}
	if !ok {
		stored, err := s.AttemptRepo.FindByID(attempt.ID)
		if err != nil {
			return nil, err
		}
		res, rerr := s.resultFor(ctx, stored)
		if rerr != nil {
			return nil, rerr
		}
		return res, util.ErrAlreadySubmitted
	}

	monitoring.QuizSubmissionCounter.WithLabelValues(submissionLabel(score.Passed, timedOut)).Inc()

	// 派生进度是二级写入，失败只记日志：已评分的作答不能因台账更新
	// 失败而丢失，台账可独立重算
	passedOverall := score.Passed
	rec, err := s.ProgressSvc.RecordCompletion(ctx, attempt.LearnerID, quiz.ContentItemID, CompletionUpdate{
		Completed: true,
		Score:     &score.ScorePercent,
		Passed:    &score.Passed,
	})
	if err != nil {
		logger.Log.Error("progress update after quiz submission failed",
			zap.String("attemptId", attempt.ID), zap.Error(err))
	} else if rec.Passed != nil && *rec.Passed {
		passedOverall = true
	}

	return &SubmitResult{
		Attempt:  attempt,
		Score:    score,
		CanRetry: canRetry(quiz, attempt.AttemptNumber, passedOverall),
	}, nil
}

func (s *QuizAttemptService) expireAttempt(ctx context.Context, attempt *model.QuizAttempt) (*SubmitResult, error) {
	return s.finalize(ctx, attempt, decodeAnswers(attempt.Answers), true)
}

// resultFor 用已记录的终态作答重建结果载荷，不再评分
func (s *QuizAttemptService) resultFor(ctx context.Context, attempt *model.QuizAttempt) (*SubmitResult, error) {
	quiz, err := s.findQuiz(attempt.QuizID)
	if err != nil {
		return nil, err
	}
	questions, err := s.CatalogRepo.ListQuizQuestions(attempt.QuizID)
	if err != nil {
		return nil, err
	}
	// 纯函数评分对相同输入是确定的，重放即可还原反馈
	score := ScoreQuiz(quiz, questions, decodeAnswers(attempt.Answers))

	passedOverall := attempt.Passed
	if rec, err := s.ProgressSvc.ProgressRepo.Find(attempt.LearnerID, quiz.ContentItemID); err == nil && rec != nil && rec.Passed != nil && *rec.Passed {
		passedOverall = true
	}

	return &SubmitResult{
		Attempt:  attempt,
		Score:    score,
		CanRetry: canRetry(quiz, attempt.AttemptNumber, passedOverall),
	}, nil
}

func (s *QuizAttemptService) findQuiz(quizID uint) (*model.Quiz, error) {
	quiz, err := s.CatalogRepo.FindQuizByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	return quiz, nil
}

func (s *QuizAttemptService) findOwnedAttempt(attemptID string, learnerID uint) (*model.QuizAttempt, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.LearnerID != learnerID {
		return nil, util.ErrPermissionDenied
	}
	return attempt, nil
}

// canRetry: 已通过不再重试；未通过时看剩余次数（0 = 不限）
func canRetry(quiz *model.Quiz, attemptsUsed int, passed bool) bool {
	if passed {
		return false
	}
	if quiz.MaxAttempts <= 0 {
		return true
	}
	return attemptsUsed < quiz.MaxAttempts
}

func decodeAnswers(raw string) AnswerSet {
	answers := AnswerSet{}
	if raw == "" {
		return answers
	}
	_ = json.Unmarshal([]byte(raw), &answers)
	return answers
}

func submissionLabel(passed, timedOut bool) string {
	if timedOut {
		return "timed_out"
	}
	if passed {
		return "passed"
	}
	return "failed"
}
