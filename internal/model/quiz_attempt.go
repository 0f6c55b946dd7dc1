package model

import "time"

const (
	AttemptInProgress = "in_progress"
	AttemptSubmitted  = "submitted"
)

// QuizAttempt 一次测验作答。创建时为 in_progress，提交或超时后变为
// submitted（终态），之后不再修改。TimeLimitSeconds 在开始时从测验快照，
// 后续编辑测验不影响进行中的作答。
// swagger:model QuizAttempt
type QuizAttempt struct {
	UUIDBase
	QuizID           uint       `gorm:"index:idx_quiz_learner;type:bigint unsigned" json:"quizId"`
	LearnerID        uint       `gorm:"index:idx_quiz_learner;type:bigint unsigned" json:"learnerId"`
	AttemptNumber    int        `gorm:"not null" json:"attemptNumber"`
	Status           string     `gorm:"size:20;default:'in_progress';index" json:"status"`
	StartedAt        time.Time  `json:"startedAt"`
	SubmittedAt      *time.Time `json:"submittedAt,omitempty"`
	Answers          string     `gorm:"type:json" json:"answers"` // questionId -> 答案值
	Score            int        `gorm:"default:0" json:"score"`
	Passed           bool       `gorm:"default:false" json:"passed"`
	TimeLimitSeconds int        `gorm:"default:0" json:"timeLimitSeconds"`
	TimedOut         bool       `gorm:"default:false" json:"timedOut"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// Deadline 返回超时时刻；不限时返回零值
func (a *QuizAttempt) Deadline() time.Time {
	if a.TimeLimitSeconds <= 0 {
		return time.Time{}
	}
	return a.StartedAt.Add(time.Duration(a.TimeLimitSeconds) * time.Second)
}

// Expired 判断在 now 时刻是否已超时
func (a *QuizAttempt) Expired(now time.Time) bool {
	d := a.Deadline()
	return !d.IsZero() && now.After(d)
}
