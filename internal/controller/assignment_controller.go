package controller

import (
	"errors"
	"strconv"

	"course_platform_backend/internal/service"
	"course_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssignmentController struct {
	Service *service.AssignmentService
}

func NewAssignmentController(svc *service.AssignmentService) *AssignmentController {
	return &AssignmentController{Service: svc}
}

// @Summary 获取作业详情
// @Tags 作业模块
// @Produce json
// @Security BearerAuth
// @Param id path int true "作业ID"
// @Success 200 {object} util.Response
// @Router /api/assignments/{id} [get]
func (c *AssignmentController) GetAssignment(ctx *gin.Context) {
	assignmentID := util.MustParseUint(ctx.Param("id"))

	assignment, err := c.Service.GetAssignment(assignmentID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, assignment)
}

// @Summary 保存作业草稿
// @Tags 作业模块
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "作业ID"
// @Param body body service.DraftRequest true "草稿内容"
// @Success 200 {object} util.Response
// @Router /api/assignments/{id}/draft [put]
func (c *AssignmentController) SaveDraft(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	assignmentID := util.MustParseUint(ctx.Param("id"))

	var req service.DraftRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	sub, err := c.Service.SaveDraft(ctx.Request.Context(), user.UserID, assignmentID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, sub)
}

// @Summary 上传作业附件
// @Tags 作业模块
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "作业ID"
// @Param file formData file true "附件文件"
// @Success 201 {object} util.Response
// @Router /api/assignments/{id}/files [post]
func (c *AssignmentController) UploadFile(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	assignmentID := util.MustParseUint(ctx.Param("id"))

	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}

	ref, err := c.Service.UploadFile(ctx.Request.Context(), user.UserID, assignmentID, file)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, ref)
}

// @Summary 提交作业
// @Tags 作业模块
// @Produce json
// @Security BearerAuth
// @Param submissionId path string true "提交记录ID"
// @Success 200 {object} util.Response
// @Router /api/submissions/{submissionId}/submit [post]
func (c *AssignmentController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	sub, err := c.Service.Submit(ctx.Request.Context(), ctx.Param("submissionId"), user.UserID)
	if err != nil {
		// 已终态的重复提交返回已记录的行，重试安全
		if errors.Is(err, util.ErrAlreadySubmitted) && sub != nil {
			util.Success(ctx, sub)
			return
		}
		respondError(ctx, err)
		return
	}
	util.Success(ctx, sub)
}

// @Summary 查询我在该作业下的提交历史
// @Tags 作业模块
// @Produce json
// @Security BearerAuth
// @Param id path int true "作业ID"
// @Success 200 {object} util.Response
// @Router /api/assignments/{id}/submissions [get]
func (c *AssignmentController) ListMine(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	assignmentID := util.MustParseUint(ctx.Param("id"))

	subs, err := c.Service.ListMine(ctx.Request.Context(), user.UserID, assignmentID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, subs)
}

type gradeRequest struct {
	Score    *int   `json:"score" binding:"required"`
	Feedback string `json:"feedback"`
}

// @Summary 教师评分
// @Tags 作业模块
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param submissionId path string true "提交记录ID"
// @Param body body gradeRequest true "评分内容"
// @Success 200 {object} util.Response
// @Router /api/instructor/submissions/{submissionId}/grade [post]
func (c *AssignmentController) Grade(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req gradeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	sub, err := c.Service.Grade(ctx.Request.Context(), ctx.Param("submissionId"), *req.Score, req.Feedback, user.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, sub)
}

// @Summary 待评分队列
// @Tags 作业模块
// @Produce json
// @Security BearerAuth
// @Param id path int true "作业ID"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response
// @Router /api/instructor/assignments/{id}/pending [get]
func (c *AssignmentController) ListPendingGrading(ctx *gin.Context) {
	assignmentID := util.MustParseUint(ctx.Param("id"))
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	subs, total, err := c.Service.ListPendingGrading(ctx.Request.Context(), assignmentID, page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"items": subs, "total": total})
}
