package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ListWarningsCmd creates the listWarnings command
func ListWarningsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listWarnings",
		Short: "List association updates that did not complete",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")

			warnings, err := app.Orchestrator.ListWarnings(app.Ctx, all)
			if err != nil {
				return err
			}
			if len(warnings) == 0 {
				fmt.Println("\n✓ No outstanding warnings")
				fmt.Println()
				return nil
			}

			fmt.Printf("\n%d warning(s):\n", len(warnings))
			for _, w := range warnings {
				state := "open"
				if w.Resolved() {
					state = "resolved " + w.ResolvedAt.Format("2006-01-02 15:04")
				}
				fmt.Printf("  [%s] %s  study=%d volunteer=%d appointment=%d  %s (%s)\n",
					w.ID, w.CreatedAt.Format("2006-01-02 15:04"), w.StudyID, w.VolunteerID, w.AppointmentID, w.Operation, state)
				fmt.Printf("      %s\n", w.Message)
				if len(w.Attempted) > 0 {
					fmt.Printf("      attempted: %v\n", w.Attempted)
				}
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().Bool("all", false, "Include resolved warnings")

	return cmd
}

// RetryWarningsCmd creates the retryWarnings command
func RetryWarningsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retryWarnings",
		Short: "Retry association updates for every open warning",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.Orchestrator.RetryWarnings(app.Ctx)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ %d warning(s) resolved\n", len(result.Resolved))
			for _, w := range result.Resolved {
				fmt.Printf("  ✓ [%s] volunteer %d, study %d\n", w.ID, w.VolunteerID, w.StudyID)
			}
			if len(result.Failed) > 0 {
				fmt.Printf("\n✗ %d still failing:\n", len(result.Failed))
				for _, f := range result.Failed {
					fmt.Printf("  ✗ [%s] volunteer %d, study %d: %v\n", f.Warning.ID, f.Warning.VolunteerID, f.Warning.StudyID, f.Err)
				}
			}
			fmt.Println()

			return nil
		},
	}
}
