package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
	"github.com/jwalitptl/scheduler-api/pkg/errors"
)

const (
	openSlotsTTL     = 30 * time.Second
	cacheSweepPeriod = 5 * time.Minute
)

type Service struct {
	repo    repository.AvailabilityRepository
	aptRepo repository.AppointmentRepository
	cache   *gocache.Cache
	now     func() time.Time
}

func NewService(repo repository.AvailabilityRepository, aptRepo repository.AppointmentRepository) *Service {
	return &Service{
		repo:    repo,
		aptRepo: aptRepo,
		cache:   gocache.New(openSlotsTTL, cacheSweepPeriod),
		now:     time.Now,
	}
}

// ReplaceSchedule replaces the whole window set for one date. Windows
// are validated before anything touches the store; a past date or a
// malformed/overlapping window rejects the entire request.
func (s *Service) ReplaceSchedule(ctx context.Context, clinicianID uuid.UUID, req *model.ReplaceScheduleRequest) ([]*model.AvailabilityWindow, error) {
	today := model.Today(s.now().Location())
	if req.Date.Before(today) {
		return nil, errors.Validation("schedule date cannot be in the past", nil)
	}

	windows := make([]*model.AvailabilityWindow, 0, len(req.Windows))
	for _, in := range req.Windows {
		if !in.StartTime.Before(in.EndTime) {
			return nil, errors.Validation(
				fmt.Sprintf("window %s-%s: start time must be before end time", in.StartTime, in.EndTime), nil)
		}
		enabled := true
		if in.Enabled != nil {
			enabled = *in.Enabled
		}
		windows = append(windows, &model.AvailabilityWindow{
			StartTime: in.StartTime,
			EndTime:   in.EndTime,
			Enabled:   enabled,
		})
	}

	sort.Slice(windows, func(i, j int) bool {
		return windows[i].StartTime.Before(windows[j].StartTime)
	})
	for i := 1; i < len(windows); i++ {
		if windows[i].StartTime.Before(windows[i-1].EndTime) {
			return nil, errors.Validation(
				fmt.Sprintf("window %s-%s overlaps %s-%s",
					windows[i].StartTime, windows[i].EndTime,
					windows[i-1].StartTime, windows[i-1].EndTime), nil)
		}
	}

	if err := s.repo.ReplaceForDate(ctx, clinicianID, req.Date, windows); err != nil {
		return nil, fmt.Errorf("failed to replace schedule: %w", err)
	}

	s.InvalidateOpenSlots(clinicianID, req.Date)
	return windows, nil
}

func (s *Service) GetSchedule(ctx context.Context, clinicianID uuid.UUID, from, to model.Date) ([]*model.AvailabilityWindow, error) {
	if to.Before(from) {
		return nil, errors.Validation("invalid date range", nil)
	}
	windows, err := s.repo.ListForRange(ctx, clinicianID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return windows, nil
}

// OpenSlots overlays booked appointments on the enabled windows for a
// date. For the current date the response carries a reference time so
// clients can drop slots that already passed. Reads are cached briefly;
// bookings and schedule writes invalidate.
func (s *Service) OpenSlots(ctx context.Context, clinicianID uuid.UUID, date model.Date) (*model.OpenSlots, error) {
	key := slotsCacheKey(clinicianID, date)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*model.OpenSlots), nil
	}

	windows, err := s.repo.ListForDate(ctx, clinicianID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list windows: %w", err)
	}

	booked, err := s.aptRepo.ListBookedForDate(ctx, clinicianID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	open := &model.OpenSlots{
		ClinicianID: clinicianID,
		Date:        date,
		Windows:     make([]model.OpenWindow, 0, len(windows)),
	}

	now := s.now()
	if date.Equal(model.Today(now.Location())) {
		ref := model.NewClockTime(now.Hour(), now.Minute())
		open.ReferenceTime = &ref
	}

	for _, w := range windows {
		if !w.Enabled {
			continue
		}
		// A window whose end already passed offers nothing today.
		if open.ReferenceTime != nil && !open.ReferenceTime.Before(w.EndTime) {
			continue
		}
		ow := model.OpenWindow{
			StartTime:   w.StartTime,
			EndTime:     w.EndTime,
			BookedTimes: []model.ClockTime{},
		}
		for _, apt := range booked {
			if !apt.Time.Before(w.StartTime) && apt.Time.Before(w.EndTime) {
				ow.BookedTimes = append(ow.BookedTimes, apt.Time)
			}
		}
		open.Windows = append(open.Windows, ow)
	}

	s.cache.Set(key, open, openSlotsTTL)
	return open, nil
}

// InvalidateOpenSlots drops the cached read model for one slot page.
// Called after any write that changes what the page would show.
func (s *Service) InvalidateOpenSlots(clinicianID uuid.UUID, date model.Date) {
	s.cache.Delete(slotsCacheKey(clinicianID, date))
}

func slotsCacheKey(clinicianID uuid.UUID, date model.Date) string {
	return clinicianID.String() + ":" + date.String()
}
