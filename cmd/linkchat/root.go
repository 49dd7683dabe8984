package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkchat",
		Short: "Chat about the web pages you link",
		Long: `linkchat answers questions about the pages linked in a chat message.

Every URL in a message is scraped (static HTML first, a headless browser for
pages that render client side), the text is handed to the configured model as
context and the conversation is stored so a shared link shows the same thread.

Configuration comes from the environment, a .env file and the YAML file
named by LINKCHAT_CONFIG.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.AddCommand(newServeCmd(), newFetchCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}
