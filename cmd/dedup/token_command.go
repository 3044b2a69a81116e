package main

import (
	"errors"
	"fmt"

	"corpus-dedup/pkg/token"

	"github.com/spf13/cobra"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage review API tokens",
	}
	cmd.AddCommand(newTokenIssueCommand(ctx))
	return cmd
}

func newTokenIssueCommand(ctx *commandContext) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "issue <reviewer>",
		Short: "Issue a signed token for a reviewer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.JWT.Secret == "" {
				return errors.New("jwt.secret is not configured")
			}
			tok, err := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TokenExpireHours).GenerateToken(args[0], role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", token.RoleReviewer, "Role: reviewer or viewer")
	return cmd
}
