package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"promptflow/backend/internal/config"
	"promptflow/backend/internal/logging"
	"promptflow/backend/internal/repository"
	"promptflow/backend/internal/services"
	"promptflow/backend/pkg/models"
)

type seedWorkflow struct {
	Name        string
	Description string
	Prompts     []string
}

var seedWorkflows = []seedWorkflow{
	{
		Name:        "Blog Post",
		Description: "Outline, draft and tighten a short blog post.",
		Prompts: []string{
			"Write a five-point outline for a blog post about running small language models locally.",
			"Expand the outline into a draft of about 400 words.",
			"Edit the draft for clarity and cut it to 250 words.",
		},
	},
	{
		Name:        "Release Notes",
		Description: "Turn a raw change list into user-facing release notes.",
		Prompts: []string{
			"List five plausible changes for a minor release of a CLI tool, one line each.",
			"Rewrite the changes as user-facing release notes grouped by Added, Changed and Fixed.",
		},
	},
	{
		Name:        "Product Naming",
		Description: "Brainstorm and shortlist names for a product.",
		Prompts: []string{
			"Suggest ten names for a tool that chains prompts into workflows.",
			"Pick the three strongest names from the list and explain each in one sentence.",
			"Write a one-line tagline for the top pick.",
		},
	},
}

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:          "promptflow-seed",
		Short:        "Insert demo workflows, skipping names that already exist",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return seed(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func seed(ctx context.Context, configPath string) error {

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewLogger(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := repository.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	return seedStore(ctx, services.NewWorkflowService(store), logger)
}

func seedStore(ctx context.Context, workflows *services.WorkflowService, logger *logging.Logger) error {
	existing, err := workflows.ListWorkflows(ctx)
	if err != nil {
		return fmt.Errorf("list existing workflows: %w", err)
	}
	existingMap := make(map[string]bool, len(existing))
	for _, w := range existing {
		existingMap[w.Name] = true
	}

	for _, sw := range seedWorkflows {
		if existingMap[sw.Name] {
			logger.Info("Skipping existing workflow", "name", sw.Name)
			continue
		}

		desc := sw.Description
		wf, err := workflows.CreateWorkflow(ctx, models.WorkflowCreate{Name: sw.Name, Description: &desc})
		if err != nil {
			return fmt.Errorf("create workflow %s: %w", sw.Name, err)
		}
		for _, p := range sw.Prompts {
			if _, err := workflows.AddStep(ctx, wf.ID, models.StepCreate{Prompt: p}); err != nil {
				return fmt.Errorf("add step to %s: %w", sw.Name, err)
			}
		}
		logger.Info("Seeded workflow", "name", sw.Name, "id", wf.ID, "steps", len(sw.Prompts))
	}
	logger.Info("Seeding complete")
	return nil
}
