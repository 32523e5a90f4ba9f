package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-secureform/internal/prompt"
	"github.com/goliatone/go-secureform/pkg/config"
	"github.com/goliatone/go-secureform/pkg/events"
	"github.com/goliatone/go-secureform/pkg/form"
)

func newPromptCmd(a *app) *cobra.Command {
	var formsDir, formName string

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Fill a form interactively and print the sanitized values",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := strings.TrimSpace(formsDir)
			if dir == "" {
				dir = a.settings.FormsDir
			}
			f, err := a.buildForm(dir, formName)
			if err != nil {
				return err
			}

			result, err := prompt.Fill(cmd.Context(), prompt.NewSurveyDriver(), f, nil)
			if err != nil {
				return err
			}
			if result.Err != nil {
				return result.Err
			}
			return writeJSON(cmd, result.Values)
		},
	}

	cmd.Flags().StringVar(&formsDir, "forms", "", "directory of form definitions (defaults to forms_dir)")
	cmd.Flags().StringVar(&formName, "form", "", "form to fill")
	_ = cmd.MarkFlagRequired("form")
	return cmd
}

func (a *app) loadForms(dir string) (*config.Store, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("forms directory: %w", err)
	}
	return config.LoadFS(os.DirFS(dir))
}

func (a *app) buildForm(dir, name string) (*form.Form, error) {
	store, err := a.loadForms(dir)
	if err != nil {
		return nil, err
	}
	cfg, ok := store.Form(name)
	if !ok {
		return nil, fmt.Errorf("form %q not found in %s (have: %s)", name, dir, strings.Join(store.Names(), ", "))
	}
	return form.New(cfg,
		form.WithEventLogger(events.NewZapLogger(a.logger)),
		form.WithLogger(a.logger),
	)
}
