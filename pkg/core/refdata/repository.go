// Package refdata caches the store's reference data: groups, studies and
// volunteers. Concurrent misses for the same entry share one store call.
package refdata

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jakechorley/study-scheduler/pkg/core/model"
)

// Source defines the store operations backing the cache
type Source interface {
	GetGroup(ctx context.Context, groupID int) (*model.Group, error)
	GetStudy(ctx context.Context, studyID int) (*model.Study, error)
	ListVolunteers(ctx context.Context) ([]model.Volunteer, error)
}

type cached[T any] struct {
	value   T
	expires time.Time
}

func (c cached[T]) fresh(now time.Time) bool {
	return now.Before(c.expires)
}

// Repository is a TTL cache over Source
type Repository struct {
	source Source
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu         sync.RWMutex
	groups     map[int]cached[model.Group]
	studies    map[int]cached[model.Study]
	volunteers *cached[map[int]model.Volunteer]

	flight singleflight.Group
}

// NewRepository creates a cache. A zero ttl disables caching.
func NewRepository(source Source, ttl time.Duration, logger *zap.Logger) *Repository {
	return &Repository{
		source:  source,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		groups:  make(map[int]cached[model.Group]),
		studies: make(map[int]cached[model.Study]),
	}
}

// GetGroup returns a group, from cache when fresh
func (r *Repository) GetGroup(ctx context.Context, groupID int) (*model.Group, error) {
	r.mu.RLock()
	entry, ok := r.groups[groupID]
	r.mu.RUnlock()
	if ok && entry.fresh(r.now()) {
		group := entry.value
		return &group, nil
	}

	v, err, _ := r.flight.Do("group:"+strconv.Itoa(groupID), func() (any, error) {
		group, err := r.source.GetGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.groups[groupID] = cached[model.Group]{value: *group, expires: r.now().Add(r.ttl)}
		r.mu.Unlock()
		r.logger.Debug("Cached group", zap.Int("group_id", groupID), zap.Int("iv", group.IV))
		return *group, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get group %d: %w", groupID, err)
	}

	group := v.(model.Group)
	return &group, nil
}

// GetStudy returns a study, from cache when fresh
func (r *Repository) GetStudy(ctx context.Context, studyID int) (*model.Study, error) {
	r.mu.RLock()
	entry, ok := r.studies[studyID]
	r.mu.RUnlock()
	if ok && entry.fresh(r.now()) {
		study := entry.value
		return &study, nil
	}

	v, err, _ := r.flight.Do("study:"+strconv.Itoa(studyID), func() (any, error) {
		study, err := r.source.GetStudy(ctx, studyID)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.studies[studyID] = cached[model.Study]{value: *study, expires: r.now().Add(r.ttl)}
		r.mu.Unlock()
		return *study, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get study %d: %w", studyID, err)
	}

	study := v.(model.Study)
	return &study, nil
}

// Volunteers returns all volunteers keyed by id
func (r *Repository) Volunteers(ctx context.Context) (map[int]model.Volunteer, error) {
	r.mu.RLock()
	entry := r.volunteers
	r.mu.RUnlock()
	if entry != nil && entry.fresh(r.now()) {
		return entry.value, nil
	}

	v, err, _ := r.flight.Do("volunteers", func() (any, error) {
		list, err := r.source.ListVolunteers(ctx)
		if err != nil {
			return nil, err
		}
		byID := make(map[int]model.Volunteer, len(list))
		for _, vol := range list {
			byID[vol.ID] = vol
		}
		r.mu.Lock()
		r.volunteers = &cached[map[int]model.Volunteer]{value: byID, expires: r.now().Add(r.ttl)}
		r.mu.Unlock()
		r.logger.Debug("Cached volunteers", zap.Int("count", len(byID)))
		return byID, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list volunteers: %w", err)
	}

	return v.(map[int]model.Volunteer), nil
}

// Volunteer returns one volunteer
func (r *Repository) Volunteer(ctx context.Context, volunteerID int) (model.Volunteer, bool, error) {
	all, err := r.Volunteers(ctx)
	if err != nil {
		return model.Volunteer{}, false, err
	}
	vol, ok := all[volunteerID]
	return vol, ok, nil
}

// InvalidateGroup drops a cached group, e.g. after its compensation changed
func (r *Repository) InvalidateGroup(groupID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.groups, groupID)
}

// InvalidateAll drops every cached entry
func (r *Repository) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = make(map[int]cached[model.Group])
	r.studies = make(map[int]cached[model.Study])
	r.volunteers = nil
}
