package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/study-scheduler/pkg/core/services"
)

// BatchAssignCmd creates the batchAssign command
func BatchAssignCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batchAssign <study_id>",
		Short: "Pair volunteers with appointments in order and assign them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "study_id")
			if err != nil {
				return err
			}
			apptFlag, _ := cmd.Flags().GetString("appointments")
			volFlag, _ := cmd.Flags().GetString("volunteers")
			group, _ := cmd.Flags().GetInt("group")
			yes, _ := cmd.Flags().GetBool("yes")

			apptIDs, err := parseIDList("appointments", apptFlag)
			if err != nil {
				return err
			}
			volunteerIDs, err := parseIDList("volunteers", volFlag)
			if err != nil {
				return err
			}

			schedule, err := services.LoadStudySchedule(app.Ctx, app.Store, app.Logger, ids[0])
			if err != nil {
				return err
			}
			appointments, err := selectAppointments(schedule, apptIDs)
			if err != nil {
				return err
			}

			confirm := func(ctx context.Context, skipped []services.SkippedPair) (bool, error) {
				fmt.Printf("\n⚠️  %d pair(s) would double-book a volunteer and will be skipped:\n", len(skipped))
				for _, s := range skipped {
					fmt.Printf("  - volunteer %d on appointment %d (already booked on %d)\n",
						s.VolunteerID, s.Appointment.AppointmentID, s.ConflictingAppointmentID)
				}
				if yes {
					return true, nil
				}
				return promptYesNo(app, "Continue with the remaining pairs?")
			}

			result, err := app.Orchestrator.BatchAssign(app.Ctx, appointments, volunteerIDs, group, confirm)
			if err != nil {
				return err
			}
			if result.Aborted {
				fmt.Println("\nBatch cancelled, no appointments were changed.")
				return nil
			}

			printBatchResult("assigned", result)
			return nil
		},
	}

	cmd.Flags().String("appointments", "", "Comma separated appointment ids (required)")
	cmd.Flags().String("volunteers", "", "Comma separated volunteer ids, paired in order (required)")
	cmd.Flags().Int("group", 0, "Group to use when an appointment has none")
	cmd.Flags().BoolP("yes", "y", false, "Skip conflicting pairs without asking")

	return cmd
}

// BatchUnassignCmd creates the batchUnassign command
func BatchUnassignCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batchUnassign <study_id>",
		Short: "Remove the volunteers from several appointments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "study_id")
			if err != nil {
				return err
			}
			apptFlag, _ := cmd.Flags().GetString("appointments")
			confirmed, _ := cmd.Flags().GetInt("confirm")

			apptIDs, err := parseIDList("appointments", apptFlag)
			if err != nil {
				return err
			}

			schedule, err := services.LoadStudySchedule(app.Ctx, app.Store, app.Logger, ids[0])
			if err != nil {
				return err
			}
			appointments, err := selectAppointments(schedule, apptIDs)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("confirm") {
				fmt.Printf("\nAbout to unassign %d appointment(s):\n", len(appointments))
				for _, a := range appointments {
					printAppointment(a)
				}
				ok, err := promptYesNo(app, "Proceed?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Cancelled.")
					return nil
				}
				confirmed = len(appointments)
			}

			result, err := app.Orchestrator.BatchUnassign(app.Ctx, appointments, confirmed)
			if err != nil {
				return err
			}

			printBatchResult("unassigned", result)
			return nil
		},
	}

	cmd.Flags().String("appointments", "", "Comma separated appointment ids (required)")
	cmd.Flags().Int("confirm", 0, "Number of appointments being unassigned, skips the prompt")

	return cmd
}

// promptYesNo reads a y/N answer from the shared input
func promptYesNo(app *AppContext, question string) (bool, error) {
	fmt.Printf("%s [y/N]: ", question)
	line, err := app.In.ReadString('\n')
	if err != nil && line == "" {
		app.Logger.Debug("No answer read", zap.Error(err))
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func printBatchResult(verb string, result *services.BatchResult) {
	fmt.Printf("\n✓ %d appointment(s) %s\n", len(result.Succeeded), verb)
	for _, item := range result.Succeeded {
		if item.NoOp {
			fmt.Printf("  - #%d already empty\n", item.Appointment.AppointmentID)
			continue
		}
		printAppointment(item.Appointment)
	}

	if len(result.Skipped) > 0 {
		fmt.Printf("\nSkipped %d conflicting pair(s)\n", len(result.Skipped))
	}
	if len(result.Unpaired) > 0 {
		unpaired := make([]string, len(result.Unpaired))
		for i, a := range result.Unpaired {
			unpaired[i] = strconv.Itoa(a.AppointmentID)
		}
		fmt.Printf("\nNo volunteer left for appointment(s): %s\n", strings.Join(unpaired, ", "))
	}
	if len(result.Failed) > 0 {
		fmt.Printf("\n✗ %d appointment(s) failed:\n", len(result.Failed))
		for _, f := range result.Failed {
			fmt.Printf("  ✗ #%d (volunteer %d): %v\n", f.AppointmentID, f.VolunteerID, f.Err)
		}
	}
	printWarnings(result.Warnings)
	fmt.Println()
}
