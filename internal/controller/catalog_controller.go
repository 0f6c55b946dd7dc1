package controller

import (
	"errors"

	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/service"
	"course_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CatalogController 只读的课程目录访问，读取内容前执行解锁门禁
type CatalogController struct {
	CatalogRepo *repository.CatalogRepository
	ProgressSvc *service.ProgressService
}

func NewCatalogController(catalogRepo *repository.CatalogRepository, progressSvc *service.ProgressService) *CatalogController {
	return &CatalogController{CatalogRepo: catalogRepo, ProgressSvc: progressSvc}
}

// @Summary 课程目录（按顺序排列的内容单元）
// @Tags 目录模块
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{courseId}/contents [get]
func (c *CatalogController) GetCourseOutline(ctx *gin.Context) {
	courseID := util.MustParseUint(ctx.Param("courseId"))

	items, err := c.CatalogRepo.ListContentByCourse(courseID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, items)
}

// @Summary 获取单个内容单元，未解锁时拒绝
// @Tags 目录模块
// @Produce json
// @Security BearerAuth
// @Param contentId path int true "内容ID"
// @Success 200 {object} util.Response
// @Router /api/contents/{contentId} [get]
func (c *CatalogController) GetContent(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	contentID := util.MustParseUint(ctx.Param("contentId"))

	item, err := c.CatalogRepo.FindContentByID(contentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	unlocked, err := c.ProgressSvc.IsContentUnlocked(ctx.Request.Context(), user.UserID, contentID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if !unlocked {
		respondError(ctx, util.ErrContentLocked)
		return
	}
	util.Success(ctx, item)
}
