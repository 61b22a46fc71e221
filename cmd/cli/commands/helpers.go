package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jakechorley/study-scheduler/pkg/core/model"
	"github.com/jakechorley/study-scheduler/pkg/core/services"
)

// parseIDs parses positional id arguments, naming the first invalid one
func parseIDs(args []string, names ...string) ([]int, error) {
	ids := make([]int, len(args))
	for i, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			name := "id"
			if i < len(names) {
				name = names[i]
			}
			return nil, fmt.Errorf("%s must be a positive number, got %q", name, arg)
		}
		ids[i] = id
	}
	return ids, nil
}

// parseIDList parses a comma separated list such as "1,2,3"
func parseIDList(flag, value string) ([]int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("--%s is required", flag)
	}
	parts := strings.Split(value, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("--%s: invalid id %q", flag, p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// selectAppointments looks up appointments by id, keeping the given order
func selectAppointments(schedule *services.StudySchedule, ids []int) ([]model.Appointment, error) {
	out := make([]model.Appointment, 0, len(ids))
	for _, id := range ids {
		appt, ok := schedule.Find(id)
		if !ok {
			return nil, fmt.Errorf("appointment %d in study %d: %w", id, schedule.StudyID, model.ErrAppointmentNotFound)
		}
		out = append(out, appt)
	}
	return out, nil
}

func formatOptional(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func printAppointment(a model.Appointment) {
	fmt.Printf("  #%-5d %s %s (%d min)  status=%-10s group=%-4s volunteer=%s\n",
		a.AppointmentID, a.Date, a.Time, a.DurationMinutes, a.Status,
		formatOptional(a.GroupID), formatOptional(a.VolunteerID))
}

func printWarnings(warnings []services.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Printf("\n⚠️  %d association warning(s), compensation record may be inconsistent:\n", len(warnings))
	for _, w := range warnings {
		fmt.Printf("  ! [%s] %s volunteer %d, appointment %d: %v\n", w.ID, w.Operation, w.VolunteerID, w.AppointmentID, w.Err)
	}
	fmt.Println("  Run retryWarnings to retry the association updates.")
}
