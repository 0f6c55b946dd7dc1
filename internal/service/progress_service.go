package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"
	"course_platform_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	courseProgressKeyPrefix = "course_progress:"
	courseProgressCacheTTL  = 5 * time.Minute
)

// ProgressService 是进度台账：汇聚三个控制器发来的完成信号，维护
// ProgressRecord 的单调不变量，并对外提供课程汇总和解锁计算。
type ProgressService struct {
	CatalogRepo  *repository.CatalogRepository
	ProgressRepo *repository.ProgressRepository
	Redis        *redis.Client
	Clock        Clock
}

func NewProgressService(catalogRepo *repository.CatalogRepository, progressRepo *repository.ProgressRepository, rdb *redis.Client, clock Clock) *ProgressService {
	return &ProgressService{
		CatalogRepo:  catalogRepo,
		ProgressRepo: progressRepo,
		Redis:        rdb,
		Clock:        clock,
	}
}

// CompletionUpdate 某内容单元的一次完成信号
type CompletionUpdate struct {
	Completed bool
	Score     *int  // 0-100
	Passed    *bool
}

// RecordCompletion 合并完成信号到进度记录。合并规则：
//   - Completed 单调，只置 true 不回退
//   - 已通过的记录不被后续不及格的重试降级；仅当新成绩是提升
//     （新的通过且分数更高）或记录尚未通过时才覆盖 Score/Passed
func (s *ProgressService) RecordCompletion(ctx context.Context, learnerID, contentID uint, update CompletionUpdate) (*model.ProgressRecord, error) {
	rec, err := s.ProgressRepo.Find(learnerID, contentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &model.ProgressRecord{
			LearnerID: learnerID,
			ContentID: contentID,
		}
	}

	if update.Completed && !rec.Completed {
		rec.Completed = true
		now := s.Clock.Now()
		rec.CompletedAt = &now
	}

	alreadyPassed := rec.Passed != nil && *rec.Passed
	if !alreadyPassed {
		if update.Score != nil {
			rec.Score = update.Score
		}
		if update.Passed != nil {
			rec.Passed = update.Passed
		}
	} else if update.Passed != nil && *update.Passed &&
		update.Score != nil && (rec.Score == nil || *update.Score > *rec.Score) {
		rec.Score = update.Score
	}

	if err := s.ProgressRepo.Upsert(rec); err != nil {
		return nil, err
	}

	s.InvalidateForContent(ctx, learnerID, contentID)
	return rec, nil
}

// MarkManualComplete 学员手动标记文档类内容已读。测验、作业、视频的完成
// 由各自的控制器派生，不接受手动标记。
func (s *ProgressService) MarkManualComplete(ctx context.Context, learnerID, contentID uint) (*model.ProgressRecord, error) {
	item, err := s.CatalogRepo.FindContentByID(contentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrContentNotFound
		}
		return nil, err
	}
	if item.ContentType != model.ContentDocument {
		return nil, util.ErrNotManualCompletable
	}
	return s.RecordCompletion(ctx, learnerID, contentID, CompletionUpdate{Completed: true})
}

// UpdateVideoState 写视频专属字段（断点位置、累计观看时长）并在到达结尾时
// 标记完成。WatchedDuration 只增不减。
func (s *ProgressService) UpdateVideoState(ctx context.Context, learnerID, contentID uint, position, playedSeconds float64, reachedEnd bool) (*model.ProgressRecord, error) {
	rec, err := s.ProgressRepo.Find(learnerID, contentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &model.ProgressRecord{
			LearnerID: learnerID,
			ContentID: contentID,
		}
	}

	rec.LastPosition = position
	if playedSeconds > 0 {
		rec.WatchedDuration += playedSeconds
	}
	if reachedEnd && !rec.Completed {
		rec.Completed = true
		now := s.Clock.Now()
		rec.CompletedAt = &now
	}

	if err := s.ProgressRepo.Upsert(rec); err != nil {
		return nil, err
	}

	if reachedEnd {
		s.InvalidateForContent(ctx, learnerID, contentID)
	}
	return rec, nil
}

type PerContentStatus struct {
	ContentID   uint              `json:"contentId"`
	Title       string            `json:"title"`
	ContentType model.ContentType `json:"contentType"`
	OrderIndex  int               `json:"orderIndex"`
	Completed   bool              `json:"completed"`
	Passed      *bool             `json:"passed,omitempty"` // 仅测验/作业
	Score       *int              `json:"score,omitempty"`  // 仅测验/作业
	Unlocked    bool              `json:"unlocked"`
	IsFree      bool              `json:"isFree"`
}

type CourseProgress struct {
	CourseID        uint               `json:"courseId"`
	CompletedCount  int                `json:"completedCount"`
	TotalCount      int                `json:"totalCount"`
	ProgressPercent int                `json:"progressPercent"`
	PerContent      []PerContentStatus `json:"perContent"`
}

// GetCourseProgress 只读汇总。缺失的进度记录按"未开始"处理，不是错误。
// 每次调用基于当前记录重算解锁集合，不缓存中间结果（汇总本身有短 TTL
// 缓存，完成事件到达时立即失效）。
func (s *ProgressService) GetCourseProgress(ctx context.Context, courseID, learnerID uint) (*CourseProgress, error) {
	if cached := s.readCache(ctx, courseID, learnerID); cached != nil {
		return cached, nil
	}

	items, err := s.CatalogRepo.ListContentByCourse(courseID)
	if err != nil {
		return nil, err
	}

	recs, err := s.progressByContent(learnerID, items)
	if err != nil {
		return nil, err
	}

	progress := &CourseProgress{
		CourseID:   courseID,
		TotalCount: len(items),
		PerContent: make([]PerContentStatus, 0, len(items)),
	}

	unlocked := UnlockedSet(items, recs)
	for i, item := range items {
		status := PerContentStatus{
			ContentID:   item.ID,
			Title:       item.Title,
			ContentType: item.ContentType,
			OrderIndex:  item.OrderIndex,
			Unlocked:    unlocked[i],
			IsFree:      item.IsFree,
		}
		if rec := recs[item.ID]; rec != nil {
			status.Completed = rec.Completed
			if item.ContentType == model.ContentQuiz || item.ContentType == model.ContentAssignment {
				status.Passed = rec.Passed
				status.Score = rec.Score
			}
			if rec.Completed {
				progress.CompletedCount++
			}
		}
		progress.PerContent = append(progress.PerContent, status)
	}

	if progress.TotalCount > 0 {
		progress.ProgressPercent = int(math.Round(100 * float64(progress.CompletedCount) / float64(progress.TotalCount)))
	}

	s.writeCache(ctx, courseID, learnerID, progress)
	return progress, nil
}

// IsUnlocked 判断序列中第 index 项是否解锁。首项永远解锁；其余项要求
// 之前的所有项都已完成（严格顺序：一个未完成的前置锁住其后全部内容）。
// 免费试看内容额外放行。
func IsUnlocked(items []model.ContentItem, recs map[uint]*model.ProgressRecord, index int) bool {
	if index < 0 || index >= len(items) {
		return false
	}
	return UnlockedSet(items, recs)[index]
}

// UnlockedSet 对整个有序内容列表计算解锁集合
func UnlockedSet(items []model.ContentItem, recs map[uint]*model.ProgressRecord) []bool {
	unlocked := make([]bool, len(items))
	chain := true
	for i, item := range items {
		if i > 0 {
			prev := recs[items[i-1].ID]
			chain = chain && prev != nil && prev.Completed
		}
		unlocked[i] = chain || item.IsFree
	}
	return unlocked
}

// IsContentUnlocked 按内容ID做解锁判断，供控制器做访问守卫
func (s *ProgressService) IsContentUnlocked(ctx context.Context, learnerID, contentID uint) (bool, error) {
	item, err := s.CatalogRepo.FindContentByID(contentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, util.ErrContentNotFound
		}
		return false, err
	}

	items, err := s.CatalogRepo.ListContentByCourse(item.CourseID)
	if err != nil {
		return false, err
	}
	recs, err := s.progressByContent(learnerID, items)
	if err != nil {
		return false, err
	}

	for i := range items {
		if items[i].ID == contentID {
			return IsUnlocked(items, recs, i), nil
		}
	}
	return false, util.ErrContentNotFound
}

// InvalidateForContent 完成事件后使该内容所属课程的汇总缓存失效。
// 缓存失效失败只记日志：台账随时可以重算，不能影响主操作。
func (s *ProgressService) InvalidateForContent(ctx context.Context, learnerID, contentID uint) {
	if s.Redis == nil {
		return
	}
	item, err := s.CatalogRepo.FindContentByID(contentID)
	if err != nil {
		logger.Log.Warn("progress cache invalidation: content lookup failed",
			zap.Uint("contentId", contentID), zap.Error(err))
		return
	}
	key := courseProgressKey(item.CourseID, learnerID)
	if err := s.Redis.Del(ctx, key).Err(); err != nil {
		logger.Log.Warn("progress cache invalidation failed",
			zap.String("key", key), zap.Error(err))
	}
}

func (s *ProgressService) progressByContent(learnerID uint, items []model.ContentItem) (map[uint]*model.ProgressRecord, error) {
	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	recs, err := s.ProgressRepo.ListByLearnerAndContent(learnerID, ids)
	if err != nil {
		return nil, err
	}
	byContent := make(map[uint]*model.ProgressRecord, len(recs))
	for i := range recs {
		byContent[recs[i].ContentID] = &recs[i]
	}
	return byContent, nil
}

func courseProgressKey(courseID, learnerID uint) string {
	return fmt.Sprintf("%s%d:%d", courseProgressKeyPrefix, courseID, learnerID)
}

func (s *ProgressService) readCache(ctx context.Context, courseID, learnerID uint) *CourseProgress {
	if s.Redis == nil {
		return nil
	}
	val, err := s.Redis.Get(ctx, courseProgressKey(courseID, learnerID)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("progress cache read failed", zap.Error(err))
		}
		return nil
	}
	var progress CourseProgress
	if err := json.Unmarshal([]byte(val), &progress); err != nil {
		return nil
	}
	return &progress
}

func (s *ProgressService) writeCache(ctx context.Context, courseID, learnerID uint, progress *CourseProgress) {
	if s.Redis == nil {
		return
	}
	data, err := json.Marshal(progress)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, courseProgressKey(courseID, learnerID), data, courseProgressCacheTTL).Err(); err != nil {
		logger.Log.Warn("progress cache write failed", zap.Error(err))
	}
}
