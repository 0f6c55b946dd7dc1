package controller

import (
	"errors"

	"course_platform_backend/internal/service"
	"course_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	Service *service.QuizAttemptService
}

func NewQuizController(svc *service.QuizAttemptService) *QuizController {
	return &QuizController{Service: svc}
}

// @Summary 获取测验（学员视角，不含正确答案）
// @Tags 测验模块
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	quizID := util.MustParseUint(ctx.Param("id"))

	view, err := c.Service.GetQuizForLearner(ctx.Request.Context(), quizID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 开始答题（已有未超时的进行中记录时恢复该记录）
// @Tags 测验模块
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 201 {object} util.Response
// @Router /api/quizzes/{id}/attempts [post]
func (c *QuizController) StartAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	quizID := util.MustParseUint(ctx.Param("id"))

	attempt, err := c.Service.Start(ctx.Request.Context(), quizID, user.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

// @Summary 查询单次答题记录
// @Tags 测验模块
// @Produce json
// @Security BearerAuth
// @Param attemptId path string true "答题记录ID"
// @Success 200 {object} util.Response
// @Router /api/attempts/{attemptId} [get]
func (c *QuizController) GetAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.Service.GetAttempt(ctx.Request.Context(), ctx.Param("attemptId"), user.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

type saveAnswersRequest struct {
	Answers service.AnswerSet `json:"answers" binding:"required"`
}

// @Summary 暂存作答（不判分）
// @Tags 测验模块
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param attemptId path string true "答题记录ID"
// @Param body body saveAnswersRequest true "作答内容"
// @Success 200 {object} util.Response
// @Router /api/attempts/{attemptId}/answers [put]
func (c *QuizController) SaveAnswers(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req saveAnswersRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Service.SaveAnswers(ctx.Request.Context(), ctx.Param("attemptId"), user.UserID, req.Answers); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

type submitAttemptRequest struct {
	Answers service.AnswerSet `json:"answers"`
}

// @Summary 提交答题并判分
// @Tags 测验模块
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param attemptId path string true "答题记录ID"
// @Param body body submitAttemptRequest true "最终作答"
// @Success 200 {object} util.Response
// @Router /api/attempts/{attemptId}/submit [post]
func (c *QuizController) SubmitAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req submitAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Service.Submit(ctx.Request.Context(), ctx.Param("attemptId"), user.UserID, req.Answers)
	if err != nil {
		// 重复提交按成功处理，返回已记录的结果，保证重试安全
		if errors.Is(err, util.ErrAlreadySubmitted) && result != nil {
			util.Success(ctx, result)
			return
		}
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 查询我在该测验下的全部答题记录
// @Tags 测验模块
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id}/attempts [get]
func (c *QuizController) ListAttempts(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	quizID := util.MustParseUint(ctx.Param("id"))

	summary, err := c.Service.ListAttempts(ctx.Request.Context(), quizID, user.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}
