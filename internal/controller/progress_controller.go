package controller

import (
	"course_platform_backend/internal/service"
	"course_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	Service *service.ProgressService
}

func NewProgressController(svc *service.ProgressService) *ProgressController {
	return &ProgressController{Service: svc}
}

// @Summary 课程进度汇总（逐项状态 + 解锁集合 + 完成百分比）
// @Tags 进度模块
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{courseId}/progress [get]
func (c *ProgressController) GetCourseProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID := util.MustParseUint(ctx.Param("courseId"))

	progress, err := c.Service.GetCourseProgress(ctx.Request.Context(), courseID, user.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// @Summary 查询单个内容项对当前学员是否解锁
// @Tags 进度模块
// @Produce json
// @Security BearerAuth
// @Param contentId path int true "内容ID"
// @Success 200 {object} util.Response
// @Router /api/contents/{contentId}/unlocked [get]
func (c *ProgressController) GetContentUnlocked(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	contentID := util.MustParseUint(ctx.Param("contentId"))

	unlocked, err := c.Service.IsContentUnlocked(ctx.Request.Context(), user.UserID, contentID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"contentId": contentID, "unlocked": unlocked})
}

// @Summary 手动标记内容完成（文档类内容）
// @Tags 进度模块
// @Produce json
// @Security BearerAuth
// @Param contentId path int true "内容ID"
// @Success 200 {object} util.Response
// @Router /api/contents/{contentId}/complete [post]
func (c *ProgressController) MarkComplete(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	contentID := util.MustParseUint(ctx.Param("contentId"))

	rec, err := c.Service.MarkManualComplete(ctx.Request.Context(), user.UserID, contentID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, rec)
}
