package model

const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionMultipleSelect = "multiple_select"
	QuestionTrueFalse      = "true_false"
	QuestionFillBlank      = "fill_blank"
)

// Quiz 测验定义，归属内容目录方，核心只读
// swagger:model Quiz
type Quiz struct {
	BaseModel
	ContentItemID       uint   `gorm:"index;type:bigint unsigned" json:"contentItemId"`
	Title               string `gorm:"size:255;not null" json:"title"`
	TimeLimitMinutes    int    `gorm:"default:0" json:"timeLimitMinutes"` // 0 = 不限时
	MaxAttempts         int    `gorm:"default:0" json:"maxAttempts"`      // 0 = 不限次数
	PassingScorePercent int    `gorm:"default:60" json:"passingScorePercent"`
	ShowCorrectAnswers  bool   `gorm:"default:false" json:"showCorrectAnswers"`
	RandomizeQuestions  bool   `gorm:"default:false" json:"randomizeQuestions"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// QuizQuestion 单个题目。Options 和 CorrectAnswer 存 JSON 字符串，
// 形状由 QuestionType 决定（选择题为字符串，多选题为字符串数组，判断题为布尔）。
// swagger:model QuizQuestion
type QuizQuestion struct {
	BaseModel
	QuizID        uint   `gorm:"index;type:bigint unsigned" json:"quizId"`
	QuestionType  string `gorm:"size:50;not null" json:"questionType"`
	Content       string `gorm:"type:text;not null" json:"content"`
	Options       string `gorm:"type:json" json:"options"`
	CorrectAnswer string `gorm:"type:json" json:"-"`
	Points        int    `gorm:"default:1" json:"points"`
	Explanation   string `gorm:"type:text" json:"explanation,omitempty"`
	Order         int    `gorm:"default:0" json:"order"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}
