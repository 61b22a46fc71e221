package services

import (
	"context"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/jakechorley/study-scheduler/pkg/core/model"
)

// maxSlots bounds a single CreateSlots call
const maxSlots = 1000

// SlotCreator creates appointments in the store
type SlotCreator interface {
	CreateAppointment(ctx context.Context, appt model.Appointment) (*model.Appointment, error)
}

// SlotRequest describes recurring appointment slots for a study group.
// RRule selects the dates between Start and End (inclusive); each date gets
// one slot per entry of Times ("15:04").
type SlotRequest struct {
	StudyID         int
	GroupID         int
	RRule           string
	Start           time.Time
	End             time.Time
	Times           []string
	DurationMinutes int
}

// SlotResult collects the slots created and the ones that failed
type SlotResult struct {
	Created []model.Appointment
	Failed  []SlotFailure
}

// SlotFailure is a slot the store rejected
type SlotFailure struct {
	Date string
	Time string
	Err  error
}

// SlotDates expands the request's rule into dates
func SlotDates(req SlotRequest) ([]time.Time, error) {
	rule, err := rrule.StrToRRule(req.RRule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rrule: %w", err)
	}
	rule.DTStart(req.Start)

	return rule.Between(req.Start, req.End, true), nil
}

// CreateSlots creates one PLANIFIE appointment per (date, time) described by
// req. Store failures are collected per slot; the call only fails when the
// request itself is invalid.
func CreateSlots(ctx context.Context, store SlotCreator, logger *zap.Logger, req SlotRequest) (*SlotResult, error) {
	if req.StudyID <= 0 {
		return nil, model.ValidationErrorf("study id is required (study=%d)", req.StudyID)
	}
	if len(req.Times) == 0 {
		return nil, model.ValidationErrorf("at least one slot time is required")
	}
	if req.End.Before(req.Start) {
		return nil, model.ValidationErrorf("end %s is before start %s", req.End.Format("2006-01-02"), req.Start.Format("2006-01-02"))
	}
	for _, t := range req.Times {
		if _, err := time.Parse("15:04", t); err != nil {
			return nil, model.ValidationErrorf("invalid slot time %q, expected HH:MM", t)
		}
	}

	dates, err := SlotDates(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	if total := len(dates) * len(req.Times); total > maxSlots {
		return nil, model.ValidationErrorf("request would create %d slots, limit is %d", total, maxSlots)
	}

	logger.Debug("Creating slots",
		zap.Int("study_id", req.StudyID),
		zap.Int("group_id", req.GroupID),
		zap.String("rrule", req.RRule),
		zap.Int("dates", len(dates)),
		zap.Strings("times", req.Times))

	var groupID *int
	if req.GroupID > 0 {
		groupID = model.IntPtr(req.GroupID)
	}

	result := &SlotResult{}
	for _, d := range dates {
		date := d.Format("2006-01-02")
		for _, t := range req.Times {
			created, err := store.CreateAppointment(ctx, model.Appointment{
				StudyID:         req.StudyID,
				Date:            date,
				Time:            t,
				DurationMinutes: req.DurationMinutes,
				Status:          model.AppointmentPlanned,
				GroupID:         groupID,
			})
			if err != nil {
				logger.Debug("Failed to create slot", zap.String("date", date), zap.String("time", t), zap.Error(err))
				result.Failed = append(result.Failed, SlotFailure{Date: date, Time: t, Err: err})
				continue
			}
			result.Created = append(result.Created, *created)
		}
	}

	logger.Info("Slots created",
		zap.Int("study_id", req.StudyID),
		zap.Int("created", len(result.Created)),
		zap.Int("failed", len(result.Failed)))

	return result, nil
}
