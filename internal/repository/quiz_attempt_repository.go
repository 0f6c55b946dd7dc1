package repository

import (
	"errors"
	"time"

	"course_platform_backend/internal/model"

	"gorm.io/gorm"
)

type QuizAttemptRepository struct {
	DB *gorm.DB
}

func NewQuizAttemptRepository(db *gorm.DB) *QuizAttemptRepository {
	return &QuizAttemptRepository{DB: db}
}

func (r *QuizAttemptRepository) Create(attempt *model.QuizAttempt) error {
	return r.DB.Create(attempt).Error
}

func (r *QuizAttemptRepository) FindByID(id string) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	if err := r.DB.Where("id = ?", id).First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *QuizAttemptRepository) CountByQuizAndLearner(quizID, learnerID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).
		Where("quiz_id = ? AND learner_id = ?", quizID, learnerID).
		Count(&count).Error
	return count, err
}

// FindInProgress 返回进行中的作答，不存在时返回 (nil, nil)
func (r *QuizAttemptRepository) FindInProgress(quizID, learnerID uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.Where("quiz_id = ? AND learner_id = ? AND status = ?",
		quizID, learnerID, model.AttemptInProgress).
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *QuizAttemptRepository) ListByQuizAndLearner(quizID, learnerID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("quiz_id = ? AND learner_id = ?", quizID, learnerID).
		Order("attempt_number ASC").
		Find(&attempts).Error
	return attempts, err
}

// SaveAnswers 只在进行中状态下更新暂存答案
func (r *QuizAttemptRepository) SaveAnswers(attemptID string, answers string) (bool, error) {
	res := r.DB.Model(&model.QuizAttempt{}).
		Where("id = ? AND status = ?", attemptID, model.AttemptInProgress).
		Update("answers", answers)
	return res.RowsAffected > 0, res.Error
}

// FinalizeSubmission 以状态守卫提交终态转移：只有仍处于 in_progress 的行
// 会被改写。返回 false 表示已有并发提交先行完成（幂等保护）。
func (r *QuizAttemptRepository) FinalizeSubmission(attempt *model.QuizAttempt) (bool, error) {
	res := r.DB.Model(&model.QuizAttempt{}).
		Where("id = ? AND status = ?", attempt.ID, model.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":       model.AttemptSubmitted,
			"answers":      attempt.Answers,
			"score":        attempt.Score,
			"passed":       attempt.Passed,
			"submitted_at": attempt.SubmittedAt,
			"timed_out":    attempt.TimedOut,
		})
	return res.RowsAffected > 0, res.Error
}

// ListExpirable 返回所有进行中且带时限的作答，超时判断由调用方按各行的
// 快照时限完成（跨 MySQL/sqlite 的可移植做法）。
func (r *QuizAttemptRepository) ListExpirable(before time.Time) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("status = ? AND time_limit_seconds > 0 AND started_at < ?",
		model.AttemptInProgress, before).
		Find(&attempts).Error
	return attempts, err
}
