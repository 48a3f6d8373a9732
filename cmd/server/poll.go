package main

import (
	"github.com/spf13/cobra"

	"github.com/habat-tech/todrive/internal/telegram"
)

func newPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Receive updates by long polling and relay them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, logger, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := shutdownContext(cmd.Context(), logger)

			poller := telegram.NewPoller(a.Telegram.Bot(), a.Bot, resolvedCfg.Telegram.PollTimeout, logger)
			return poller.Run(ctx)
		},
	}
}
