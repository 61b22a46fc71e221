package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/study-scheduler/pkg/core/model"
)

// AssignCmd creates the assign command
func AssignCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assign <study_id> <appointment_id> <volunteer_id>",
		Short: "Assign a volunteer to an appointment",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "study_id", "appointment_id", "volunteer_id")
			if err != nil {
				return err
			}
			group, _ := cmd.Flags().GetInt("group")

			result, err := app.Orchestrator.AssignSingle(app.Ctx, model.Appointment{StudyID: ids[0], AppointmentID: ids[1]}, ids[2], group)
			if err != nil {
				return err
			}

			name := fmt.Sprintf("Volunteer %d", ids[2])
			if vol, ok, err := app.RefData.Volunteer(app.Ctx, ids[2]); err == nil && ok {
				name = fmt.Sprintf("%s %s (%d)", vol.FirstName, vol.LastName, vol.ID)
			}

			fmt.Printf("\n✓ %s assigned\n\n", name)
			printAppointment(result.Appointment)
			if result.Reconciliation != nil {
				fmt.Printf("\nAssociation: %s\n", result.Reconciliation.Action)
			}
			printWarnings(result.Warnings)
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().Int("group", 0, "Group to use when the appointment has none")

	return cmd
}

// UnassignCmd creates the unassign command
func UnassignCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unassign <study_id> <appointment_id>",
		Short: "Remove the volunteer from an appointment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "study_id", "appointment_id")
			if err != nil {
				return err
			}

			result, err := app.Orchestrator.UnassignSingle(app.Ctx, model.Appointment{StudyID: ids[0], AppointmentID: ids[1]})
			if err != nil {
				return err
			}

			if result.NoOp {
				fmt.Printf("\nAppointment %d has no volunteer, nothing to do.\n\n", ids[1])
				return nil
			}

			fmt.Printf("\n✓ Appointment unassigned\n\n")
			printAppointment(result.Appointment)
			if result.Reconciliation != nil {
				fmt.Printf("\nAssociation: %s (strategies: %v)\n", result.Reconciliation.Action, result.Reconciliation.Strategies)
			}
			printWarnings(result.Warnings)
			fmt.Println()

			return nil
		},
	}
}

// ReconcileCmd creates the reconcile command
func ReconcileCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <study_id> <volunteer_id>",
		Short: "Repair a volunteer's association from their current appointments",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "study_id", "volunteer_id")
			if err != nil {
				return err
			}

			outcome, err := app.Orchestrator.ReconcileVolunteer(app.Ctx, ids[0], ids[1])
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Association %s for volunteer %d\n", outcome.Action, ids[1])
			if outcome.Association != nil {
				fmt.Printf("  Current: %s\n", outcome.Association)
			}
			for _, a := range outcome.Removed {
				fmt.Printf("  Removed: %s\n", a)
			}
			if outcome.IVLookupFailed {
				fmt.Println("  ⚠️  Group compensation lookup failed, iv recorded as 0")
			}
			fmt.Println()

			return nil
		},
	}
}
