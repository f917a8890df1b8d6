package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskops/helpdesk-service/internal/domain"
	"github.com/deskops/helpdesk-service/internal/service"
)

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage directory users",
	}
	cmd.AddCommand(newUserCreateCommand())
	return cmd
}

func newUserCreateCommand() *cobra.Command {
	var input service.CreateUserInput
	var role string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user with any role",
		Long:  `Create a user directly in the directory. This is the only way to create agents and admins.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			input.Role = domain.Role(role)
			authService := service.NewAuthService(e.cfg.Auth, service.AuthDependencies{
				Users:  e.store.Repositories().Users,
				Logger: e.logger,
			})
			user, err := authService.CreateUser(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %q with id %d\n", user.Role, user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&input.Name, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&input.Username, "username", "", "Login username (required)")
	cmd.Flags().StringVar(&input.Email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&input.Password, "password", "", "Initial password (required)")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleUser), "Role: user, agent or admin")
	for _, flag := range []string{"name", "username", "email", "password"} {
		_ = cmd.MarkFlagRequired(flag)
	}
	return cmd
}
