package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:   "uigen-gateway",
		Short: "Chat-driven UI component generation gateway",
		Long: `uigen-gateway serves the HTTP API that turns chat prompts into
React components, keeps their version history per session and exports
them as downloadable bundles.`,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	root.PersistentFlags().String("config", "", "config file (default is ./uigen.yaml)")
	root.PersistentFlags().String("port", "", "listen port (overrides PORT)")
	root.AddCommand(serve, newModelsCmd())
	return root
}
