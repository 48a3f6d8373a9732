package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/habat-tech/todrive/internal/app"
)

func newLoginCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize Google Drive access from this terminal",
		Long: "Runs the credential lifecycle once: reuses or refreshes a stored session, " +
			"or opens the browser consent flow on a localhost callback.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolvedCfg.Auth.Interactive = true
			if cmd.Flags().Changed("port") {
				resolvedCfg.Auth.CallbackPort = port
			}

			a, _, err := buildApp(cmd.Context(), app.WithoutTelegram(), app.WithAuthOutput(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}

			sess, err := a.Manager.ObtainSession(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Google Drive access authorized.")
			if sess.Record.Account != "" {
				fmt.Fprintf(out, "Account: %s\n", sess.Record.Account)
			}
			fmt.Fprintf(out, "Access token expires: %s\n", sess.Record.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "callback port (overrides auth.callback_port)")
	return cmd
}
