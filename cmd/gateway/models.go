package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"uigen/internal/gateway/config"
	llmclient "uigen/internal/llm/client"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	modelIDStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	defaultMarkStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("42")).
				Bold(true)

	descStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the selectable generation models",
		RunE: func(cmd *cobra.Command, args []string) error {
			selected := llmclient.DefaultModel
			// A missing API key should not prevent listing.
			if cfg, err := config.Load(cmd.Flags()); err == nil && cfg.LLM.Model != "" {
				selected = cfg.LLM.Model
			}
			return renderModels(cmd.OutOrStdout(), llmclient.Models(), selected)
		},
	}
}

func renderModels(out io.Writer, models []llmclient.ModelInfo, selected string) error {
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Available models (%d)", len(models))))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, m := range models {
		mark := " "
		if m.ID == selected {
			mark = defaultMarkStyle.Render("*")
		}
		fmt.Fprintf(w, "%s %s\t%s\t%s\n", mark, modelIDStyle.Render(m.ID), m.Name, descStyle.Render(m.Description))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if !containsModel(models, selected) {
		fmt.Fprintf(out, "\n%s configured model %q is not in the catalog\n", defaultMarkStyle.Render("!"), selected)
	}
	return nil
}

func containsModel(models []llmclient.ModelInfo, id string) bool {
	for _, m := range models {
		if strings.EqualFold(m.ID, id) {
			return true
		}
	}
	return false
}
