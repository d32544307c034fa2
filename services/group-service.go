package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dhanushrs1/HDC-File/repository"
)

type approvedGroupsRepo interface {
	All(ctx context.Context) ([]repository.Group, error)
	Approve(ctx context.Context, groupID int64, name string) error
	Remove(ctx context.Context, groupID int64) error
}

// GroupService caches the approved-groups whitelist so the group
// search gate never waits on the database.
type GroupService struct {
	mu    sync.RWMutex
	cache map[int64]repository.Group
	repo  approvedGroupsRepo
	log   *zap.Logger
}

// NewGroupService loads the whitelist, retrying with a growing delay
// until the database responds or ctx is cancelled.
func NewGroupService(ctx context.Context, repo approvedGroupsRepo, log *zap.Logger) (*GroupService, error) {
	service := &GroupService{
		cache: make(map[int64]repository.Group),
		repo:  repo,
		log:   log.Named("group-service"),
	}
	delay := 1 * time.Second
	for {
		groups, err := repo.All(ctx)
		if err == nil {
			service.replace(groups)
			return service, nil
		}
		service.log.Warn("approved groups load failed", zap.Error(err), zap.Duration("retry_in", delay))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay += 1 * time.Second
	}
}

func (s *GroupService) replace(groups []repository.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[int64]repository.Group, len(groups))
	for _, group := range groups {
		s.cache[group.ID] = group
	}
}

func (s *GroupService) IsApproved(chatID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cache[chatID]
	return ok
}

// Groups lists the whitelist sorted by name for stable listings.
func (s *GroupService) Groups() []repository.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make([]repository.Group, 0, len(s.cache))
	for _, group := range s.cache {
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}

func (s *GroupService) Approve(ctx context.Context, chatID int64, name string) error {
	if err := s.repo.Approve(ctx, chatID, name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[chatID] = repository.Group{ID: chatID, Name: name, ApprovedOn: time.Now().UTC()}
	return nil
}

func (s *GroupService) Remove(ctx context.Context, chatID int64) error {
	if err := s.repo.Remove(ctx, chatID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, chatID)
	return nil
}

// Refresh reloads the whitelist from the database.
func (s *GroupService) Refresh(ctx context.Context) error {
	groups, err := s.repo.All(ctx)
	if err != nil {
		return err
	}
	s.replace(groups)
	return nil
}
