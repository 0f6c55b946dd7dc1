package service

import (
	"context"
	"errors"
	"time"

	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"
	"course_platform_backend/pkg/monitoring"

	"gorm.io/gorm"
)

// 位置心跳的落库间隔，播放器每隔几秒上报一次，全部落库没有意义
const videoPersistInterval = 5 * time.Second

// VideoProgressService 处理播放器位置心跳：节流落库、结尾判定、断点续播。
type VideoProgressService struct {
	CatalogRepo *repository.CatalogRepository
	ProgressSvc *ProgressService
	Clock       Clock
}

func NewVideoProgressService(catalogRepo *repository.CatalogRepository, progressSvc *ProgressService, clock Clock) *VideoProgressService {
	return &VideoProgressService{
		CatalogRepo: catalogRepo,
		ProgressSvc: progressSvc,
		Clock:       clock,
	}
}

type PositionUpdate struct {
	Position      float64 `json:"position" binding:"min=0"`
	PlayedSeconds float64 `json:"playedSeconds" binding:"min=0"`
	ReachedEnd    bool    `json:"reachedEnd"`
}

type VideoState struct {
	ContentID       uint    `json:"contentId"`
	LastPosition    float64 `json:"lastPosition"`
	WatchedDuration float64 `json:"watchedDuration"`
	Completed       bool    `json:"completed"`
	Persisted       bool    `json:"persisted"`
}

// OnPositionUpdate 接收位置心跳。距上次落库不足间隔的上报直接丢弃
// （返回当前已存状态），到达结尾的上报不节流，保证完成事件不丢。
func (s *VideoProgressService) OnPositionUpdate(ctx context.Context, learnerID, contentID uint, update PositionUpdate) (*VideoState, error) {
	if err := s.ensureVideo(contentID); err != nil {
		return nil, err
	}

	rec, err := s.ProgressSvc.ProgressRepo.Find(learnerID, contentID)
	if err != nil {
		return nil, err
	}

	if rec != nil && !update.ReachedEnd &&
		s.Clock.Now().Sub(rec.UpdatedAt) < videoPersistInterval {
		return stateOf(contentID, rec, false), nil
	}

	alreadyCompleted := rec != nil && rec.Completed
	rec, err = s.ProgressSvc.UpdateVideoState(ctx, learnerID, contentID,
		update.Position, update.PlayedSeconds, update.ReachedEnd)
	if err != nil {
		return nil, err
	}

	if update.ReachedEnd && !alreadyCompleted {
		monitoring.VideoCompletionCounter.Inc()
	}
	return stateOf(contentID, rec, true), nil
}

// Resume 返回断点续播位置，没有任何记录时从头开始
func (s *VideoProgressService) Resume(ctx context.Context, learnerID, contentID uint) (*VideoState, error) {
	if err := s.ensureVideo(contentID); err != nil {
		return nil, err
	}

	rec, err := s.ProgressSvc.ProgressRepo.Find(learnerID, contentID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &VideoState{ContentID: contentID}, nil
	}
	return stateOf(contentID, rec, true), nil
}

func (s *VideoProgressService) ensureVideo(contentID uint) error {
	item, err := s.CatalogRepo.FindContentByID(contentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrContentNotFound
		}
		return err
	}
	if item.ContentType != model.ContentVideo {
		return util.ErrNotVideo
	}
	return nil
}

func stateOf(contentID uint, rec *model.ProgressRecord, persisted bool) *VideoState {
	return &VideoState{
		ContentID:       contentID,
		LastPosition:    rec.LastPosition,
		WatchedDuration: rec.WatchedDuration,
		Completed:       rec.Completed,
		Persisted:       persisted,
	}
}
