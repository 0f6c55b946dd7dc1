package util

import "errors"

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnauthorized     = errors.New("unauthorized")

	ErrQuizNotFound       = errors.New("quiz not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrContentNotFound    = errors.New("content not found")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrSubmissionNotFound = errors.New("submission not found")

	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	ErrAlreadySubmitted     = errors.New("already submitted")
	ErrEmptySubmission      = errors.New("submission text and files are both empty")
	ErrInvalidFileSet       = errors.New("file set violates assignment constraints")
	ErrInvalidScore         = errors.New("score out of range")
	ErrNotSubmitted         = errors.New("submission is not in submitted status")
	ErrContentLocked        = errors.New("content locked: previous item not completed")
	ErrNotVideo             = errors.New("content is not a video")
	ErrNotManualCompletable = errors.New("content is completed by assessment, not manually")
)
