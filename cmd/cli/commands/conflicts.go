package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/study-scheduler/pkg/core/services"
)

// ConflictsCmd creates the conflicts command
func ConflictsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts <study_id>",
		Short: "List a study's appointments and any double bookings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "study_id")
			if err != nil {
				return err
			}
			assignedOnly, _ := cmd.Flags().GetBool("assigned")

			schedule, err := services.LoadStudySchedule(app.Ctx, app.Store, app.Logger, ids[0])
			if err != nil {
				return err
			}

			title := fmt.Sprintf("Study %d", ids[0])
			if study, err := app.RefData.GetStudy(app.Ctx, ids[0]); err == nil {
				title = fmt.Sprintf("%s %s", study.Ref, study.Title)
			}

			appointments := schedule.Appointments
			if assignedOnly {
				appointments = schedule.Assigned()
			}
			fmt.Printf("\n%s: %d appointment(s)\n", title, len(appointments))
			for _, a := range appointments {
				printAppointment(a)
			}

			bookings := schedule.DoubleBookings()
			if len(bookings) == 0 {
				fmt.Printf("\n✓ No double bookings\n\n")
				return nil
			}
			fmt.Printf("\n⚠️  %d double booking(s):\n", len(bookings))
			for _, group := range bookings {
				fmt.Printf("  Volunteer %d:\n", *group[0].VolunteerID)
				for _, a := range group {
					printAppointment(a)
				}
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().Bool("assigned", false, "Only list appointments with a volunteer")

	return cmd
}
