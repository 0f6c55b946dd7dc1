package repository

import (
	"errors"

	"course_platform_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AssignmentRepository struct {
	DB *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{DB: db}
}

func (r *AssignmentRepository) FindSubmissionByID(id string) (*model.AssignmentSubmission, error) {
	var sub model.AssignmentSubmission
	if err := r.DB.Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindLatestSubmission 返回该学员在此作业下 attemptNumber 最大的一行，
// 不存在时返回 (nil, nil)
func (r *AssignmentRepository) FindLatestSubmission(assignmentID, learnerID uint) (*model.AssignmentSubmission, error) {
	var sub model.AssignmentSubmission
	err := r.DB.Where("assignment_id = ? AND learner_id = ?", assignmentID, learnerID).
		Order("attempt_number DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertDraft 以 (assignment, learner, attemptNumber) 为键写入草稿。
// 近乎同时的两次草稿保存在存储边界合并为一行，靠唯一索引而不是控制器判重。
func (r *AssignmentRepository) UpsertDraft(sub *model.AssignmentSubmission) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "assignment_id"},
			{Name: "learner_id"},
			{Name: "attempt_number"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"text", "file_refs", "updated_at"}),
	}).Create(sub).Error
}

// UpdateDraftContent 改写已有草稿的内容，仅在行仍处于 draft 状态时生效
func (r *AssignmentRepository) UpdateDraftContent(sub *model.AssignmentSubmission) (bool, error) {
	res := r.DB.Model(&model.AssignmentSubmission{}).
		Where("id = ? AND status = ?", sub.ID, model.SubmissionDraft).
		Updates(map[string]interface{}{
			"text":      sub.Text,
			"file_refs": sub.FileRefs,
		})
	return res.RowsAffected > 0, res.Error
}

// FinalizeSubmit 守卫 draft→submitted（自动评分作业直接到 graded）转移。
// 返回 false 表示当前行已不在 draft 状态。
func (r *AssignmentRepository) FinalizeSubmit(sub *model.AssignmentSubmission) (bool, error) {
	updates := map[string]interface{}{
		"status":       sub.Status,
		"submitted_at": sub.SubmittedAt,
		"is_late":      sub.IsLate,
	}
	if sub.Status == model.SubmissionGraded {
		updates["score"] = sub.Score
		updates["graded_at"] = sub.GradedAt
		updates["graded_by"] = sub.GradedBy
	}
	res := r.DB.Model(&model.AssignmentSubmission{}).
		Where("id = ? AND status = ?", sub.ID, model.SubmissionDraft).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// FinalizeGrade 守卫 submitted→graded 转移
func (r *AssignmentRepository) FinalizeGrade(sub *model.AssignmentSubmission) (bool, error) {
	res := r.DB.Model(&model.AssignmentSubmission{}).
		Where("id = ? AND status = ?", sub.ID, model.SubmissionSubmitted).
		Updates(map[string]interface{}{
			"status":    model.SubmissionGraded,
			"score":     sub.Score,
			"feedback":  sub.Feedback,
			"graded_at": sub.GradedAt,
			"graded_by": sub.GradedBy,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *AssignmentRepository) ListByLearner(assignmentID, learnerID uint) ([]model.AssignmentSubmission, error) {
	var subs []model.AssignmentSubmission
	err := r.DB.Where("assignment_id = ? AND learner_id = ?", assignmentID, learnerID).
		Order("attempt_number ASC").
		Find(&subs).Error
	return subs, err
}

func (r *AssignmentRepository) ListPendingGrading(assignmentID uint, page, limit int) ([]model.AssignmentSubmission, int64, error) {
	query := r.DB.Model(&model.AssignmentSubmission{}).
		Where("assignment_id = ? AND status = ?", assignmentID, model.SubmissionSubmitted)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var subs []model.AssignmentSubmission
	err := query.Order("submitted_at ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&subs).Error
	return subs, total, err
}
