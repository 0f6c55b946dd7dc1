package model

type ContentType string

const (
	ContentVideo      ContentType = "video"
	ContentQuiz       ContentType = "quiz"
	ContentAssignment ContentType = "assignment"
	ContentDocument   ContentType = "document"
)

// ContentItem 课程内容单元，按 OrderIndex 组成课程的顺序目录
// swagger:model ContentItem
type ContentItem struct {
	BaseModel
	CourseID        uint        `gorm:"index:idx_course_order,unique;type:bigint unsigned" json:"courseId"`
	OrderIndex      int         `gorm:"index:idx_course_order,unique" json:"orderIndex"`
	Title           string      `gorm:"size:255;not null" json:"title"`
	ContentType     ContentType `gorm:"size:20;not null" json:"contentType"`
	DurationMinutes int         `gorm:"default:0" json:"durationMinutes"`
	IsFree          bool        `gorm:"default:false" json:"isFree"`
}

func (ContentItem) TableName() string {
	return "content_items"
}
