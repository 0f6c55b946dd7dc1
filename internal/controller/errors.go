package controller

import (
	"errors"

	"course_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// respondError 统一的领域错误到 HTTP 状态码映射
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrUnauthorized):
		util.Unauthorized(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrQuizNotFound),
		errors.Is(err, util.ErrAssignmentNotFound),
		errors.Is(err, util.ErrContentNotFound),
		errors.Is(err, util.ErrAttemptNotFound),
		errors.Is(err, util.ErrSubmissionNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrAttemptLimitExceeded),
		errors.Is(err, util.ErrAlreadySubmitted),
		errors.Is(err, util.ErrContentLocked):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrEmptySubmission),
		errors.Is(err, util.ErrInvalidFileSet),
		errors.Is(err, util.ErrInvalidScore),
		errors.Is(err, util.ErrNotSubmitted),
		errors.Is(err, util.ErrNotVideo),
		errors.Is(err, util.ErrNotManualCompletable):
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
