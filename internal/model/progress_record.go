package model

import (
	"time"

	"gorm.io/gorm"
)

// ProgressRecord 记录学员对单个内容单元的完成状态
// 每个 (learner, content) 组合只有一行，首次交互时懒创建。
// Completed 单调：一旦为 true 不会再回退（后续不及格的重试不抹掉已通过记录）。
// swagger:model ProgressRecord
type ProgressRecord struct {
	gorm.Model
	LearnerID       uint    `gorm:"index:idx_learner_content,unique;type:bigint unsigned"`
	ContentID       uint    `gorm:"index:idx_learner_content,unique;type:bigint unsigned"`
	Completed       bool    `gorm:"default:false"`
	Score           *int    // 0-100，仅测验/作业有意义
	Passed          *bool   // 仅测验/作业有意义
	LastPosition    float64 `gorm:"default:0"` // 秒，仅视频
	WatchedDuration float64 `gorm:"default:0"` // 秒，仅视频，单调累加
	CompletedAt     *time.Time
}

func (ProgressRecord) TableName() string {
	return "progress_records"
}
