package main

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-secureform/pkg/sanitize"
	"github.com/goliatone/go-secureform/pkg/validation"
)

var errInvalidInput = errors.New("input is invalid")

func newSanitizeCmd(a *app) *cobra.Command {
	opts := sanitize.DefaultOptions()
	var report bool

	cmd := &cobra.Command{
		Use:   "sanitize VALUE...",
		Short: "Print the sanitized form of VALUE",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.Join(args, " ")
			if !report {
				_, err := cmd.OutOrStdout().Write([]byte(sanitize.Sanitize(raw, opts) + "\n"))
				return err
			}
			return writeJSON(cmd, sanitize.SanitizeReport(raw, opts))
		},
	}

	cmd.Flags().BoolVar(&opts.AllowHTML, "html", opts.AllowHTML, "keep allow-listed markup")
	cmd.Flags().IntVar(&opts.MaxLength, "max", opts.MaxLength, "truncate to at most N characters (0 disables)")
	cmd.Flags().BoolVar(&opts.StripScripts, "strip-scripts", opts.StripScripts, "remove scripts and inline handlers")
	cmd.Flags().BoolVar(&report, "report", false, "print a JSON report instead of the value")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	var (
		rc        validation.RuleConfig
		sanitized bool
	)

	cmd := &cobra.Command{
		Use:   "validate VALUE",
		Short: "Sanitize and validate VALUE against a field rule",
		Long: `Sanitizes VALUE with the default text policy, validates it and prints the
result as JSON. Exits non-zero when the value is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := rc.Compile()
			if err != nil {
				return err
			}
			value := args[0]
			if !sanitized {
				value = sanitize.Sanitize(value, sanitize.DefaultOptions())
			}
			result := validation.Validate(value, rule)
			if err := writeJSON(cmd, result); err != nil {
				return err
			}
			if !result.Valid {
				return errInvalidInput
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rc.Type, "type", string(validation.FieldTypeText), "field type (text, email, url, phone, name, password)")
	cmd.Flags().BoolVar(&rc.Required, "required", false, "reject empty values")
	cmd.Flags().IntVar(&rc.MinLength, "min", 0, "minimum length")
	cmd.Flags().IntVar(&rc.MaxLength, "max", 0, "maximum length")
	cmd.Flags().StringVar(&rc.Pattern, "pattern", "", "regular expression the value must match")
	cmd.Flags().StringVar(&rc.PatternMessage, "pattern-message", "", "message shown when --pattern fails")
	cmd.Flags().BoolVar(&sanitized, "sanitized", false, "treat VALUE as already sanitized")
	return cmd
}

func writeJSON(cmd *cobra.Command, payload any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
