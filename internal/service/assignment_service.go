package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"
	"course_platform_backend/pkg/logger"
	"course_platform_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AssignmentService 管理作业提交周期：draft ⇄ draft（编辑）→ submitted → graded（终态）。
type AssignmentService struct {
	CatalogRepo *repository.CatalogRepository
	AssignRepo  *repository.AssignmentRepository
	ProgressSvc *ProgressService
	Storage     *StorageService
	Clock       Clock
}

func NewAssignmentService(catalogRepo *repository.CatalogRepository, assignRepo *repository.AssignmentRepository, progressSvc *ProgressService, storage *StorageService, clock Clock) *AssignmentService {
	return &AssignmentService{
		CatalogRepo: catalogRepo,
		AssignRepo:  assignRepo,
		ProgressSvc: progressSvc,
		Storage:     storage,
		Clock:       clock,
	}
}

type DraftRequest struct {
	Text  string          `json:"text"`
	Files []model.FileRef `json:"files"`
}

// SaveDraft 保存草稿。文件集约束在任何写入之前校验（不只在前端）。
// 草稿只保留最新版本；已评分且允许重交时开新周期，attemptNumber 递增。
func (s *AssignmentService) SaveDraft(ctx context.Context, learnerID, assignmentID uint, req DraftRequest) (*model.AssignmentSubmission, error) {
	assignment, err := s.findAssignment(assignmentID)
	if err != nil {
		return nil, err
	}
	if err := validateFileSet(assignment, req.Files); err != nil {
		return nil, err
	}

	latest, err := s.AssignRepo.FindLatestSubmission(assignmentID, learnerID)
	if err != nil {
		return nil, err
	}

	fileRefs, err := json.Marshal(req.Files)
	if err != nil {
		return nil, err
	}

	attemptNumber := 1
	switch {
	case latest == nil:
		// 首次交互，懒创建
	case latest.Status == model.SubmissionDraft:
		// 编辑现有草稿：同一行原地改写，不保留中间版本
		latest.Text = req.Text
		latest.FileRefs = string(fileRefs)
		ok, err := s.AssignRepo.UpdateDraftContent(latest)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, util.ErrAlreadySubmitted
		}
		return latest, nil
	case latest.Status == model.SubmissionSubmitted:
		// 待评分期间不允许再起草稿
		return nil, util.ErrAlreadySubmitted
	case latest.Status == model.SubmissionGraded:
		if !assignment.AllowResubmit {
			return nil, util.ErrAlreadySubmitted
		}
		// 新周期建新行，不改写已评分历史
		attemptNumber = latest.AttemptNumber + 1
	}

	sub := &model.AssignmentSubmission{
		AssignmentID:  assignmentID,
		LearnerID:     learnerID,
		AttemptNumber: attemptNumber,
		Text:          req.Text,
		FileRefs:      string(fileRefs),
		Status:        model.SubmissionDraft,
	}
	if err := s.AssignRepo.UpsertDraft(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Submit 提交草稿。正文和附件都为空时拒绝；迟交按提交时刻对照截止时间
// 判定并记录。自动评分作业立即进入 graded，得满分，评分人为 system。
func (s *AssignmentService) Submit(ctx context.Context, submissionID string, learnerID uint) (*model.AssignmentSubmission, error) {
	sub, err := s.findOwnedSubmission(submissionID, learnerID)
	if err != nil {
		return nil, err
	}
	if sub.Status != model.SubmissionDraft {
		return sub, util.ErrAlreadySubmitted
	}

	if strings.TrimSpace(sub.Text) == "" && len(decodeFileRefs(sub.FileRefs)) == 0 {
		return nil, util.ErrEmptySubmission
	}

	assignment, err := s.findAssignment(sub.AssignmentID)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	sub.Status = model.SubmissionSubmitted
	sub.SubmittedAt = &now
	sub.IsLate = assignment.DueDate != nil && now.After(*assignment.DueDate)

	if assignment.AutoGrade {
		score := assignment.MaxScore
		sub.Status = model.SubmissionGraded
		sub.Score = &score
		sub.GradedAt = &now
		sub.GradedBy = model.SystemGrader
	}

	ok, err := s.AssignRepo.FinalizeSubmit(sub)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 并发重复提交：返回已记录的行，调用方按成功处理
		stored, err := s.AssignRepo.FindSubmissionByID(sub.ID)
		if err != nil {
			return nil, err
		}
		return stored, util.ErrAlreadySubmitted
	}

	if sub.Status == model.SubmissionGraded {
		monitoring.AssignmentGradeCounter.WithLabelValues(model.SystemGrader).Inc()
		s.recordGradedProgress(ctx, assignment, sub)
	}
	return sub, nil
}

// Grade 教师评分。分数越界和状态不对的校验都在任何写入之前完成。
func (s *AssignmentService) Grade(ctx context.Context, submissionID string, score int, feedback string, graderID uint) (*model.AssignmentSubmission, error) {
	sub, err := s.AssignRepo.FindSubmissionByID(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSubmissionNotFound
		}
		return nil, err
	}

	assignment, err := s.findAssignment(sub.AssignmentID)
	if err != nil {
		return nil, err
	}
	if score < 0 || score > assignment.MaxScore {
		return nil, util.ErrInvalidScore
	}
	if sub.Status != model.SubmissionSubmitted {
		return nil, util.ErrNotSubmitted
	}

	now := s.Clock.Now()
	sub.Score = &score
	sub.Feedback = feedback
	sub.GradedAt = &now
	sub.GradedBy = strconv.FormatUint(uint64(graderID), 10)
	sub.Status = model.SubmissionGraded

	ok, err := s.AssignRepo.FinalizeGrade(sub)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrNotSubmitted
	}

	monitoring.AssignmentGradeCounter.WithLabelValues("manual").Inc()
	s.recordGradedProgress(ctx, assignment, sub)
	return sub, nil
}

// UploadFile 上传作业附件：先按作业约束校验，再调存储方，只记录返回的
// 引用。附件总数约束在草稿保存时整体校验。
func (s *AssignmentService) UploadFile(ctx context.Context, learnerID, assignmentID uint, file *multipart.FileHeader) (*model.FileRef, error) {
	assignment, err := s.findAssignment(assignmentID)
	if err != nil {
		return nil, err
	}
	if err := validateFileSet(assignment, []model.FileRef{{Name: file.Filename, Size: file.Size}}); err != nil {
		return nil, err
	}

	// 浏览器报的 Content-Type 不可信，按文件头嗅探实际类型
	probe, err := file.Open()
	if err != nil {
		return nil, err
	}
	mimeType, err := util.ValidateMimeType(probe, []string{
		util.MimeImage, util.MimeVideo, util.MimePDF,
		"text/", "application/zip", util.MimeOctetStream,
	})
	probe.Close()
	if err != nil {
		return nil, util.ErrInvalidFileSet
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	ext := filepath.Ext(file.Filename)
	ref := fmt.Sprintf("assignments/%d/%d/%d_%s%s",
		assignmentID, learnerID, s.Clock.Now().UnixNano(), util.GenerateRandomString(8), ext)

	storageRef, err := s.Storage.Upload(ctx, ref, src, file.Size, mimeType)
	if err != nil {
		return nil, err
	}

	return &model.FileRef{
		Name:       file.Filename,
		Size:       file.Size,
		StorageRef: storageRef,
	}, nil
}

func (s *AssignmentService) GetDownloadURL(ref string) string {
	return s.Storage.GetDownloadURL(ref)
}

func (s *AssignmentService) ListMine(ctx context.Context, learnerID, assignmentID uint) ([]model.AssignmentSubmission, error) {
	if _, err := s.findAssignment(assignmentID); err != nil {
		return nil, err
	}
	return s.AssignRepo.ListByLearner(assignmentID, learnerID)
}

func (s *AssignmentService) ListPendingGrading(ctx context.Context, assignmentID uint, page, limit int) ([]model.AssignmentSubmission, int64, error) {
	return s.AssignRepo.ListPendingGrading(assignmentID, page, limit)
}

func (s *AssignmentService) GetAssignment(assignmentID uint) (*model.Assignment, error) {
	return s.findAssignment(assignmentID)
}

// recordGradedProgress 评分后的派生进度写入，二级、尽力而为。
// 作业没有独立的及格线字段，评分过即视为通过（设计决定，非测验意义的及格）。
func (s *AssignmentService) recordGradedProgress(ctx context.Context, assignment *model.Assignment, sub *model.AssignmentSubmission) {
	passed := true
	percent := 0
	if sub.Score != nil && assignment.MaxScore > 0 {
		percent = int(math.Round(100 * float64(*sub.Score) / float64(assignment.MaxScore)))
	}
	_, err := s.ProgressSvc.RecordCompletion(ctx, sub.LearnerID, assignment.ContentItemID, CompletionUpdate{
		Completed: true,
		Score:     &percent,
		Passed:    &passed,
	})
	if err != nil {
		logger.Log.Error("progress update after assignment grading failed",
			zap.String("submissionId", sub.ID), zap.Error(err))
	}
}

// validateFileSet 文件集不变量：数量 ≤ maxFiles、单个大小 ≤ maxFileSize、
// 扩展名在白名单内。任何一条不满足都在写入前拒绝。
func validateFileSet(assignment *model.Assignment, files []model.FileRef) error {
	if len(files) == 0 {
		return nil
	}
	if assignment.MaxFiles > 0 && len(files) > assignment.MaxFiles {
		return util.ErrInvalidFileSet
	}

	allowed := decodeAllowedTypes(assignment.AllowedFileTypes)
	for _, f := range files {
		if assignment.MaxFileSize > 0 && f.Size > assignment.MaxFileSize {
			return util.ErrInvalidFileSet
		}
		if len(allowed) > 0 {
			ext := strings.ToLower(filepath.Ext(f.Name))
			if !allowed[ext] {
				return util.ErrInvalidFileSet
			}
		}
	}
	return nil
}

func decodeAllowedTypes(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	var exts []string
	if err := json.Unmarshal([]byte(raw), &exts); err != nil {
		return nil
	}
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		allowed[e] = true
	}
	return allowed
}

func decodeFileRefs(raw string) []model.FileRef {
	if raw == "" {
		return nil
	}
	var refs []model.FileRef
	_ = json.Unmarshal([]byte(raw), &refs)
	return refs
}

func (s *AssignmentService) findAssignment(id uint) (*model.Assignment, error) {
	assignment, err := s.CatalogRepo.FindAssignmentByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAssignmentNotFound
		}
		return nil, err
	}
	return assignment, nil
}

func (s *AssignmentService) findOwnedSubmission(id string, learnerID uint) (*model.AssignmentSubmission, error) {
	sub, err := s.AssignRepo.FindSubmissionByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSubmissionNotFound
		}
		return nil, err
	}
	if sub.LearnerID != learnerID {
		return nil, util.ErrPermissionDenied
	}
	return sub, nil
}
