// Command lubriadmin runs back-office jobs against the lubricentro database:
// the monthly usage reset, trial expiry and superadmin bootstrap.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/ukydev/lubricentro/internal/app"
	"github.com/ukydev/lubricentro/internal/config"
	"github.com/ukydev/lubricentro/internal/logging"
	"github.com/ukydev/lubricentro/internal/models"
	"github.com/ukydev/lubricentro/internal/subscription"
)

// backend is the slice of the application the jobs need.
type backend interface {
	ResetMonthlyUsage(ctx context.Context) (int64, error)
	ExpireTrials(ctx context.Context) ([]string, error)
	CreateSuperAdmin(ctx context.Context, email, password, firstName, lastName string) (*models.User, error)
	Close(ctx context.Context) error
}

type appBackend struct{ *app.App }

func (b appBackend) ResetMonthlyUsage(ctx context.Context) (int64, error) {
	return b.Lubricentros.ResetMonthlyUsage(ctx, nil)
}

func (b appBackend) ExpireTrials(ctx context.Context) ([]string, error) {
	return b.Lubricentros.ExpireTrials(ctx, nil)
}

func (b appBackend) CreateSuperAdmin(ctx context.Context, email, password, firstName, lastName string) (*models.User, error) {
	return b.Users.CreateSuperAdmin(ctx, email, password, firstName, lastName)
}

type connectFunc func(ctx context.Context) (backend, error)

func connect(ctx context.Context) (backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.AppEnv, cfg.LogLevel)
	a, err := app.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return appBackend{a}, nil
}

func main() {
	if err := rootCmd(connect).Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd(connect connectFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "lubriadmin",
		Short:         "Back-office jobs for the lubricentro service",
		SilenceUsage:  true,
	}
	cmd.AddCommand(plansCmd(), resetUsageCmd(connect), expireTrialsCmd(connect), createSuperAdminCmd(connect))
	return cmd
}

// withBackend connects, runs fn and always flushes the backend.
func withBackend(cmd *cobra.Command, connect connectFunc, fn func(ctx context.Context, b backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	runErr := fn(ctx, b)
	if err := b.Close(context.Background()); err != nil {
		log.WithError(err).Warn("Failed to flush audit log")
	}
	return runErr
}

func plansCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "List the subscription plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = os.Getenv("PLANS_FILE")
			}
			catalog, err := subscription.LoadCatalog(path)
			if err != nil {
				return err
			}
			return printPlans(cmd.OutOrStdout(), catalog)
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "Plans YAML file (defaults to PLANS_FILE or the built-in catalog)")
	return cmd
}

func printPlans(out io.Writer, catalog subscription.Catalog) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMONTHLY\tSEMIANNUAL\tUSERS\tSERVICES/MONTH")
	for _, p := range catalog.Plans() {
		services := "unlimited"
		if !p.Unlimited() {
			services = fmt.Sprint(p.MaxMonthlyServices)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%d\t%s\n", p.ID, p.Name, p.MonthlyPrice, p.SemiannualPrice, p.MaxUsers, services)
	}
	return tw.Flush()
}

func resetUsageCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-usage",
		Short: "Zero the monthly service counters of every lubricentro",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, connect, func(ctx context.Context, b backend) error {
				n, err := b.ResetMonthlyUsage(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reset %d lubricentros\n", n)
				return nil
			})
		},
	}
}

func expireTrialsCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "expire-trials",
		Short: "Deactivate lubricentros whose trial has ended",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, connect, func(ctx context.Context, b backend) error {
				ids, err := b.ExpireTrials(ctx)
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "expired %d trials\n", len(ids))
				return err
			})
		},
	}
}

func createSuperAdminCmd(connect connectFunc) *cobra.Command {
	var email, password, firstName, lastName string
	cmd := &cobra.Command{
		Use:   "create-superadmin",
		Short: "Create a platform superadmin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("SUPERADMIN_PASSWORD")
			}
			return withBackend(cmd, connect, func(ctx context.Context, b backend) error {
				u, err := b.CreateSuperAdmin(ctx, email, password, firstName, lastName)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created superadmin %s (%s)\n", u.Email, u.ID.Hex())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (or SUPERADMIN_PASSWORD)")
	cmd.Flags().StringVar(&firstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Last name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
