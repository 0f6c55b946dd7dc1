package model

import "time"

const (
	SubmissionDraft     = "draft"
	SubmissionSubmitted = "submitted"
	SubmissionGraded    = "graded"
)

// 系统自动评分时 GradedBy 的取值
const SystemGrader = "system"

// FileRef 已上传的附件引用。核心只保存存储方返回的引用，不保存文件内容。
type FileRef struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	StorageRef string `json:"storageRef"`
}

// AssignmentSubmission 一个提交周期（草稿 → 提交 → 评分）。
// 同一 (learner, assignment, attemptNumber) 只有一行；截止前编辑草稿
// 只更新该行，不保留中间版本。评分后如允许重交，新周期建新行，
// attemptNumber 递增，保留已评分历史。
// swagger:model AssignmentSubmission
type AssignmentSubmission struct {
	UUIDBase
	AssignmentID  uint       `gorm:"index:idx_assignment_learner_attempt,unique;type:bigint unsigned" json:"assignmentId"`
	LearnerID     uint       `gorm:"index:idx_assignment_learner_attempt,unique;type:bigint unsigned" json:"learnerId"`
	AttemptNumber int        `gorm:"index:idx_assignment_learner_attempt,unique;default:1" json:"attemptNumber"`
	Text          string     `gorm:"type:text" json:"text"`
	FileRefs      string     `gorm:"type:json" json:"fileRefs"` // []FileRef
	Status        string     `gorm:"size:20;default:'draft';index" json:"status"`
	SubmittedAt   *time.Time `json:"submittedAt,omitempty"`
	IsLate        bool       `gorm:"default:false" json:"isLate"`
	Score         *int       `json:"score,omitempty"`
	Feedback      string     `gorm:"type:text" json:"feedback"`
	GradedAt      *time.Time `json:"gradedAt,omitempty"`
	GradedBy      string     `gorm:"size:64" json:"gradedBy,omitempty"`
}

func (AssignmentSubmission) TableName() string {
	return "assignment_submissions"
}
