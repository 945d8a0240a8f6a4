package resource

import (
	"context"
	"strings"
	"time"

	"github.com/nekogravitycat/reservation-engine/internal/teardown"
	"github.com/nekogravitycat/reservation-engine/internal/user"
)

type CreateRequest struct {
	// OwnerID defaults to the caller; only system admins may set someone else.
	OwnerID      string
	Name         string
	Description  string
	Capacity     int
	IsRestricted bool
	TimeZone     string
	Schedule     *Schedule
}

type UpdateRequest struct {
	Name          *string
	Description   *string
	Capacity      *int
	IsRestricted  *bool
	TimeZone      *string
	Schedule      *Schedule
	ClearSchedule bool // drop all rules so the resource is always open
}

type Service interface {
	Create(ctx context.Context, req CreateRequest, actor user.Actor) (*Resource, error)
	GetByID(ctx context.Context, id string) (*Resource, error)
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
	Update(ctx context.Context, id string, req UpdateRequest, actor user.Actor) (*Resource, error)
	// Delete removes the resource with its bookings and waitlist entries.
	Delete(ctx context.Context, id string, actor user.Actor) error
}

type service struct {
	repo    Repository
	remover teardown.Remover
	cache   Cache
}

// NewService builds the resource service. cache may be nil.
func NewService(repo Repository, remover teardown.Remover, cache Cache) Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &service{repo: repo, remover: remover, cache: cache}
}

func validateTimeZone(tz string) (string, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return "UTC", nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return "", ErrInvalidTimeZone
	}
	return tz, nil
}

func (s *service) Create(ctx context.Context, req CreateRequest, actor user.Actor) (*Resource, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrEmptyName
	}
	if req.Capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	tz, err := validateTimeZone(req.TimeZone)
	if err != nil {
		return nil, err
	}

	owner := actor.UserID
	if req.OwnerID != "" && req.OwnerID != actor.UserID {
		if !actor.IsSystemAdmin {
			return nil, ErrPermissionDenied
		}
		owner = req.OwnerID
	}
	if owner == "" {
		return nil, ErrOwnerRequired
	}

	res := &Resource{
		OwnerID:      owner,
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		Capacity:     req.Capacity,
		IsRestricted: req.IsRestricted,
		TimeZone:     tz,
		Schedule:     req.Schedule,
	}
	if err := s.repo.Create(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Resource, error) {
	if res, ok := s.cache.Get(ctx, id); ok {
		return res, nil
	}
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, res)
	return res, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) authorize(ctx context.Context, id string, actor user.Actor) (*Resource, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !res.IsAuthority(actor.UserID, actor.IsSystemAdmin) {
		return nil, ErrPermissionDenied
	}
	return res, nil
}

func (s *service) Update(ctx context.Context, id string, req UpdateRequest, actor user.Actor) (*Resource, error) {
	res, err := s.authorize(ctx, id, actor)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, ErrEmptyName
		}
		res.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		res.Description = *req.Description
	}
	if req.Capacity != nil {
		if *req.Capacity < 1 {
			return nil, ErrInvalidCapacity
		}
		res.Capacity = *req.Capacity
	}
	if req.IsRestricted != nil {
		res.IsRestricted = *req.IsRestricted
	}
	if req.TimeZone != nil {
		tz, err := validateTimeZone(*req.TimeZone)
		if err != nil {
			return nil, err
		}
		res.TimeZone = tz
	}
	switch {
	case req.ClearSchedule:
		res.Schedule = nil
	case req.Schedule != nil:
		res.Schedule = req.Schedule
	}

	// Existing bookings are not re-validated against new rules.
	if err := s.repo.Update(ctx, res); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, id)
	return res, nil
}

func (s *service) Delete(ctx context.Context, id string, actor user.Actor) error {
	if _, err := s.authorize(ctx, id, actor); err != nil {
		return err
	}

	removed, err := s.remover.Remove(ctx, teardown.Resources, id)
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id)
	if !removed {
		return ErrNotFound
	}
	return nil
}
