package controller

import (
	"course_platform_backend/internal/service"
	"course_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type VideoController struct {
	Service *service.VideoProgressService
}

func NewVideoController(svc *service.VideoProgressService) *VideoController {
	return &VideoController{Service: svc}
}

// @Summary 上报播放位置心跳
// @Tags 视频进度模块
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param contentId path int true "内容ID"
// @Param body body service.PositionUpdate true "位置信息"
// @Success 200 {object} util.Response
// @Router /api/videos/{contentId}/position [put]
func (c *VideoController) UpdatePosition(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	contentID := util.MustParseUint(ctx.Param("contentId"))

	var req service.PositionUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	state, err := c.Service.OnPositionUpdate(ctx.Request.Context(), user.UserID, contentID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, state)
}

// @Summary 获取断点续播位置
// @Tags 视频进度模块
// @Produce json
// @Security BearerAuth
// @Param contentId path int true "内容ID"
// @Success 200 {object} util.Response
// @Router /api/videos/{contentId}/resume [get]
func (c *VideoController) Resume(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	contentID := util.MustParseUint(ctx.Param("contentId"))

	state, err := c.Service.Resume(ctx.Request.Context(), user.UserID, contentID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, state)
}
