package main

import (
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/go-token-broker/cache"
	"github.com/jrsteele09/go-token-broker/sessions"
	"github.com/spf13/cobra"
)

func newInspectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <session-id>",
		Short: "Resolve a session and print its outcome with tokens masked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *cache.Client) error {
				broker, err := opts.broker(store)
				if err != nil {
					return err
				}
				res := broker.ResolveSession(cmd.Context(), args[0])
				printf(cmd, "outcome: %s\n", res.Outcome)
				if !res.LoggedIn() {
					if cause := res.Cause(); cause != nil {
						printf(cmd, "cause: %v\n", cause)
					}
					return nil
				}

				data, err := json.MarshalIndent(masked(*res.Credentials), "", "  ")
				if err != nil {
					return fmt.Errorf("marshal credentials: %w", err)
				}
				printf(cmd, "%s\n", data)
				return nil
			})
		},
	}
}

func newRevokeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <session-id>...",
		Short: "Delete one or more sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *cache.Client) error {
				broker, err := opts.broker(store)
				if err != nil {
					return err
				}
				for _, id := range args {
					if err := broker.RevokeSession(cmd.Context(), id); err != nil {
						return fmt.Errorf("revoke %s: %w", sessions.Fingerprint(id), err)
					}
					printf(cmd, "revoked %s\n", sessions.Fingerprint(id))
				}
				return nil
			})
		},
	}
}

// masked hides token values, keeping a short tail for recognition.
func masked(c sessions.Credentials) sessions.Credentials {
	c.AccessToken = mask(c.AccessToken)
	c.RefreshToken = mask(c.RefreshToken)
	c.IDToken = mask(c.IDToken)
	return c
}

func mask(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}
