package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"novelhub/internal/auth"
)

func newTokenCommand(a *app) *cobra.Command {
	var operator string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an operator token for the admin routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, exp, err := a.tokens().Sign(operator)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			a.log.Info().Str("operator", operator).Time("expires", exp).Msg("token signed")
			return nil
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "admin", "operator name stored in the token")
	return cmd
}

func (a *app) tokens() auth.TokenService {
	return auth.TokenService{
		Secret:   []byte(a.cfg.Auth.JWTSecret),
		Issuer:   a.cfg.Auth.JWTIssuer,
		Duration: a.cfg.Auth.JWTDuration,
	}
}
