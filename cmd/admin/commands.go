package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"codedesk/internal/api/v1/dto"
	"codedesk/internal/model"
	"codedesk/internal/repository"
	"codedesk/internal/service"

	"github.com/spf13/cobra"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := repository.ApplyMigrations(cmd.Context(), app.pool, app.log); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect users",
	}
	var customerID string
	get := &cobra.Command{
		Use:   "get [user-id]",
		Short: "Print a user by identity provider id or Stripe customer id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (customerID == "") {
				return errors.New("pass either a user id or --customer")
			}
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			var (
				u   *model.User
				key string
			)
			if customerID != "" {
				key = customerID
				u, err = app.users().GetUserByStripeCustomerID(cmd.Context(), customerID)
			} else {
				key = args[0]
				u, err = app.users().GetUserByID(cmd.Context(), key)
			}
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("user %s: %w", key, service.ErrUserNotFound)
			}
			return printJSON(cmd.OutOrStdout(), dto.NewUserResponseDTO(u))
		},
	}
	get.Flags().StringVar(&customerID, "customer", "", "Stripe customer id")
	cmd.AddCommand(get)
	return cmd
}

func verifySessionCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "verify-session [session-id]",
		Short: "Re-check a Checkout session with Stripe and grant Pro when it is paid",
		Long: `Re-runs the post-checkout verification for a support case.

The session metadata names the user. --user overrides it only when the
session carries no userId, and is refused when it names someone else.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			stripeSvc, err := app.stripe(cmd.Context())
			if err != nil {
				return err
			}
			res, err := stripeSvc.ReconcileSession(cmd.Context(), args[0], userID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dto.VerifyPaymentResponseDTO{Success: res.Success, IsPaid: res.IsPaid})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "identity provider user id")
	return cmd
}

func grantCmd() *cobra.Command {
	var identity service.Identity
	var billing service.Billing
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant Pro to a user without a Stripe session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if identity.ExternalID == "" && identity.Email == "" {
				return errors.New("one of --user or --email is required")
			}
			app, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			entitlements, err := app.entitlements(cmd.Context())
			if err != nil {
				return err
			}
			res, err := entitlements.GrantPro(cmd.Context(), identity, billing, model.GrantSourceAdmin)
			if err != nil {
				return err
			}
			if res.AlreadyPro {
				fmt.Fprintf(cmd.ErrOrStderr(), "user was already Pro since %s\n", res.User.ProSince)
			}
			return printJSON(cmd.OutOrStdout(), dto.NewUserResponseDTO(res.User))
		},
	}
	cmd.Flags().StringVar(&identity.ExternalID, "user", "", "identity provider user id")
	cmd.Flags().StringVar(&identity.Email, "email", "", "email of an already synced user")
	cmd.Flags().StringVar(&billing.CustomerID, "customer", "", "Stripe customer id to record")
	cmd.Flags().StringVar(&billing.SubscriptionID, "subscription", "", "Stripe subscription or session id to record")
	return cmd
}
