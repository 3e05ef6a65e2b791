package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"matchastock/internal/clock"
	"matchastock/internal/config"
	"matchastock/internal/unsubscribe"
	"matchastock/internal/validate"
)

func newUnsubscribeURLCmd() *cobra.Command {
	var email, scope, id string
	cmd := &cobra.Command{
		Use:   "unsubscribe-url",
		Short: "Print a signed unsubscribe link for an email address",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, ok := validate.Email(email)
			if !ok {
				return fmt.Errorf("invalid email %q", email)
			}
			s := unsubscribe.Scope(scope)
			switch s {
			case unsubscribe.ScopeAll, unsubscribe.ScopeBrand, unsubscribe.ScopeProduct:
			default:
				return fmt.Errorf("unknown type %q (want brand or product)", scope)
			}
			if s != unsubscribe.ScopeAll && id == "" {
				return fmt.Errorf("--id is required with --type %s", s)
			}
			cfg := config.Load()
			signer := unsubscribe.NewSigner(cfg.UnsubscribeSecret, cfg.BaseURL, clock.Real{})
			fmt.Fprintln(cmd.OutOrStdout(), signer.URL(addr, s, id))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "subscriber email")
	cmd.Flags().StringVar(&scope, "type", "", "brand or product; empty unsubscribes from everything")
	cmd.Flags().StringVar(&id, "id", "", "brand or product id for --type")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
