package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"videomix/internal/config"
	"videomix/internal/tui"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show, edit, or validate the persisted settings",
		// Bare `videomix settings` prints the effective values.
		RunE: runSettingsShow,
	}
	cmd.AddCommand(newSettingsShowCmd(), newSettingsEditCmd(), newSettingsValidateCmd())
	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE:  runSettingsShow,
	}
}

func newSettingsEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit settings interactively and save them",
		RunE:  runSettingsEdit,
	}
}

func newSettingsValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the persisted settings and report problems",
		RunE:  runSettingsValidate,
	}
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	_, settings, err := loadSettings()
	if err != nil {
		return err
	}
	data, err := settings.Marshal()
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runSettingsEdit(cmd *cobra.Command, _ []string) error {
	pp, settings, err := loadSettings()
	if err != nil {
		return err
	}
	if err := pp.EnsureDirs(); err != nil {
		return err
	}

	edited, saved, err := tui.RunSettingsEdit(cmd.OutOrStdout(), settings)
	if err != nil {
		return err
	}
	if !saved {
		fmt.Fprintln(cmd.OutOrStdout(), "no changes saved")
		return nil
	}

	if findings := edited.Validate(); config.HasErrors(findings) {
		for _, f := range findings {
			if f.Level == "error" {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", f.Message)
			}
		}
		return fmt.Errorf("edited settings are invalid, nothing saved")
	}

	if err := edited.Save(pp.SettingsFile); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "settings saved to %s\n", pp.SettingsFile)
	return nil
}

func runSettingsValidate(cmd *cobra.Command, _ []string) error {
	_, settings, err := loadSettings()
	if err != nil {
		return err
	}
	findings := settings.Validate()

	if outputJSON {
		payload := struct {
			Valid    bool                      `json:"valid"`
			Findings []config.ValidationResult `json:"findings"`
		}{
			Valid:    !config.HasErrors(findings),
			Findings: findings,
		}
		if payload.Findings == nil {
			payload.Findings = []config.ValidationResult{}
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("encode validation result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		if config.HasErrors(findings) {
			return fmt.Errorf("settings are invalid")
		}
		return nil
	}

	out := cmd.OutOrStdout()
	if len(findings) == 0 {
		fmt.Fprintln(out, "settings are valid")
		return nil
	}
	for _, f := range findings {
		if f.Level == "error" {
			fmt.Fprintf(out, "%s %s\n", tui.StatusStyle("error").Render("ERROR"), f.Message)
		}
	}
	for _, f := range findings {
		if f.Level != "error" {
			fmt.Fprintf(out, "%s  %s\n", tui.StatusStyle("stopping").Render("WARN"), f.Message)
		}
	}
	if config.HasErrors(findings) {
		return fmt.Errorf("settings are invalid")
	}
	return nil
}
