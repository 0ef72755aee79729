package cmd

import (
	"fmt"

	"github.com/Togather-Foundation/eventplus/internal/auth"
	"github.com/Togather-Foundation/eventplus/internal/config"
	"github.com/spf13/cobra"
)

func newTokenCommand(opts *globalOptions) *cobra.Command {
	var userID, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for local testing",
		Long: `Sign an access token with the configured JWT_SECRET.

The user is not looked up; the token is accepted as long as the id and role
parse. Intended for development against a local server:

  curl -H "Authorization: Bearer $(eventplus token --user-id 01J... --role organizer)" \
    http://localhost:8080/api/v1/events`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			token, err := issueToken(cfg.Auth, userID, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "subject of the token")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleAdministrator), "administrator, organizer or attendee")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func issueToken(cfg config.AuthConfig, userID, role string) (string, error) {
	parsed, ok := auth.ParseRole(role)
	if !ok {
		return "", fmt.Errorf("unknown role %q", role)
	}
	manager, err := auth.NewAccessTokenManager(cfg.JWTSecret, cfg.JWTExpiry, cfg.Issuer, cfg.Audience, cfg.ClockSkew)
	if err != nil {
		return "", err
	}
	token, _, err := manager.Generate(auth.Principal{UserID: userID, Role: parsed})
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}
