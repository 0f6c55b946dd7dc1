package repository

import (
	"errors"

	"course_platform_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// Find 返回进度记录，不存在时返回 (nil, nil)。缺失记录表示"未开始"，
// 不是错误。
func (r *ProgressRepository) Find(learnerID, contentID uint) (*model.ProgressRecord, error) {
	var rec model.ProgressRecord
	err := r.DB.Where("learner_id = ? AND content_id = ?", learnerID, contentID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *ProgressRepository) ListByLearnerAndContent(learnerID uint, contentIDs []uint) ([]model.ProgressRecord, error) {
	if len(contentIDs) == 0 {
		return nil, nil
	}
	var recs []model.ProgressRecord
	err := r.DB.Where("learner_id = ? AND content_id IN ?", learnerID, contentIDs).
		Find(&recs).Error
	return recs, err
}

// Upsert 以 (learner, content) 为键写入。行在首次交互时懒创建，
// 并发创建由唯一索引在存储边界合并。
func (r *ProgressRepository) Upsert(rec *model.ProgressRecord) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "learner_id"},
			{Name: "content_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"completed", "score", "passed",
			"last_position", "watched_duration",
			"completed_at", "updated_at",
		}),
	}).Create(rec).Error
}
