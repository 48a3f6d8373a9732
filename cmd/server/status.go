package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/habat-tech/todrive/internal/app"
	"github.com/habat-tech/todrive/internal/credential"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored credential state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, _, err := buildApp(cmd.Context(), app.WithoutTelegram())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch _, err := a.Store.ClientConfig(ctx); {
			case errors.Is(err, credential.ErrNoClientConfig):
				fmt.Fprintln(out, "Client config: missing")
			case err != nil:
				return err
			default:
				fmt.Fprintln(out, "Client config: present")
			}

			state, rec, err := a.Manager.Status(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Session: %s\n", state)
			if rec != nil {
				if rec.Account != "" {
					fmt.Fprintf(out, "Account: %s\n", rec.Account)
				}
				if !rec.ExpiresAt.IsZero() {
					fmt.Fprintf(out, "Expires: %s\n", rec.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
				}
			}
			return nil
		},
	}
}
