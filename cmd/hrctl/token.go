package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/hr-admin-api/internal/models"
	"github.com/noah-isme/hr-admin-api/internal/service"
	"github.com/noah-isme/hr-admin-api/pkg/config"
)

type tokenOutput struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func newTokenCmd() *cobra.Command {
	var op service.Operator
	var role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator access token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			auth := service.NewAuthService(nil, service.AuthConfig{
				AccessTokenSecret: cfg.JWT.Secret,
				AccessTokenExpiry: cfg.JWT.Expiration,
				Issuer:            cfg.JWT.Issuer,
			})
			op.Role = models.UserRole(role)
			token, expiresAt, err := auth.IssueToken(op)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tokenOutput{AccessToken: token, ExpiresAt: expiresAt})
		},
	}
	cmd.Flags().StringVar(&op.ID, "user-id", "", "Subject of the token (required)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleHR), "Operator role")
	cmd.Flags().StringVar(&op.Email, "email", "", "Operator e-mail")
	cmd.Flags().StringVar(&op.FullName, "name", "", "Operator display name")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}
