package repository

import (
	"course_platform_backend/internal/model"

	"gorm.io/gorm"
)

// CatalogRepository 内容目录的只读访问。课程/测验/作业定义由目录方维护，
// 本服务从不写这些表。
type CatalogRepository struct {
	DB *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{DB: db}
}

func (r *CatalogRepository) ListContentByCourse(courseID uint) ([]model.ContentItem, error) {
	var items []model.ContentItem
	err := r.DB.Where("course_id = ?", courseID).
		Order("order_index ASC").
		Find(&items).Error
	return items, err
}

func (r *CatalogRepository) FindContentByID(id uint) (*model.ContentItem, error) {
	var item model.ContentItem
	if err := r.DB.First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *CatalogRepository) FindQuizByID(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	if err := r.DB.First(&quiz, id).Error; err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *CatalogRepository) ListQuizQuestions(quizID uint) ([]model.QuizQuestion, error) {
	var questions []model.QuizQuestion
	err := r.DB.Where("quiz_id = ?", quizID).
		Order("`order` ASC, id ASC").
		Find(&questions).Error
	return questions, err
}

func (r *CatalogRepository) FindAssignmentByID(id uint) (*model.Assignment, error) {
	var assignment model.Assignment
	if err := r.DB.First(&assignment, id).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}
