package model

import "time"

// Assignment 作业定义，归属内容目录方，核心只读
// swagger:model Assignment
type Assignment struct {
	BaseModel
	ContentItemID    uint       `gorm:"index;type:bigint unsigned" json:"contentItemId"`
	Title            string     `gorm:"size:255;not null" json:"title"`
	Instructions     string     `gorm:"type:text" json:"instructions"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	MaxScore         int        `gorm:"default:100" json:"maxScore"`
	MaxFiles         int        `gorm:"default:1" json:"maxFiles"`
	MaxFileSize      int64      `gorm:"default:10485760" json:"maxFileSize"` // 字节
	AllowedFileTypes string     `gorm:"type:json" json:"allowedFileTypes"`   // 扩展名数组，如 [".pdf",".zip"]
	AutoGrade        bool       `gorm:"default:false" json:"autoGrade"`
	AllowResubmit    bool       `gorm:"default:false" json:"allowResubmit"`
}

func (Assignment) TableName() string {
	return "assignments"
}
