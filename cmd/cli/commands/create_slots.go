package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jakechorley/study-scheduler/pkg/core/services"
)

// CreateSlotsCmd creates the createSlots command
func CreateSlotsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "createSlots <study_id>",
		Short: "Create planned appointments from a recurrence rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "study_id")
			if err != nil {
				return err
			}
			rule, _ := cmd.Flags().GetString("rrule")
			startFlag, _ := cmd.Flags().GetString("start")
			endFlag, _ := cmd.Flags().GetString("end")
			times, _ := cmd.Flags().GetStringSlice("times")
			group, _ := cmd.Flags().GetInt("group")
			duration, _ := cmd.Flags().GetInt("duration")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			start, err := time.Parse(time.DateOnly, startFlag)
			if err != nil {
				return fmt.Errorf("--start must be YYYY-MM-DD: %w", err)
			}
			end, err := time.Parse(time.DateOnly, endFlag)
			if err != nil {
				return fmt.Errorf("--end must be YYYY-MM-DD: %w", err)
			}

			req := services.SlotRequest{
				StudyID:         ids[0],
				GroupID:         group,
				RRule:           rule,
				Start:           start,
				End:             end,
				Times:           times,
				DurationMinutes: duration,
			}

			if dryRun {
				dates, err := services.SlotDates(req)
				if err != nil {
					return err
				}
				fmt.Printf("\n%d date(s) x %d time(s):\n", len(dates), len(times))
				for _, d := range dates {
					fmt.Printf("  %s  %s\n", d.Format("2006-01-02 (Monday)"), strings.Join(times, ", "))
				}
				fmt.Println()
				return nil
			}

			result, err := services.CreateSlots(app.Ctx, app.Store, app.Logger, req)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Created %d appointment(s)\n", len(result.Created))
			for _, a := range result.Created {
				printAppointment(a)
			}
			if len(result.Failed) > 0 {
				fmt.Printf("\n✗ %d slot(s) failed:\n", len(result.Failed))
				for _, f := range result.Failed {
					fmt.Printf("  ✗ %s %s: %v\n", f.Date, f.Time, f.Err)
				}
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().String("rrule", "FREQ=WEEKLY", "RFC 5545 recurrence rule")
	cmd.Flags().String("start", "", "First date, YYYY-MM-DD (required)")
	cmd.Flags().String("end", "", "Last date, YYYY-MM-DD (required)")
	cmd.Flags().StringSlice("times", nil, "Slot times on each date, e.g. 09:00,10:30 (required)")
	cmd.Flags().Int("group", 0, "Group for the new appointments")
	cmd.Flags().Int("duration", 30, "Slot duration in minutes")
	cmd.Flags().Bool("dry-run", false, "Print the dates without creating anything")

	return cmd
}
