// Package main is the interactive storefront client. One process plays the
// part of one browser tab: it restores the stored session, keeps the cart and
// wishlist in sync and browses the catalog.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atinyakov/GophShop/internal/client/prompt"
	"github.com/atinyakov/GophShop/internal/config"
	"github.com/atinyakov/GophShop/internal/logger"
	"github.com/atinyakov/GophShop/internal/models"
)

var (
	version   string
	buildDate string
)

// newRootCmd builds the command tree. Configuration flags are shared by every
// subcommand; the shell runs when no subcommand is given.
func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := config.Default()
	var a *app

	root := &cobra.Command{
		Use:           "gophshop",
		Short:         "Storefront client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			if err := config.Load(opts); err != nil {
				return err
			}

			log := logger.New()
			if err := log.Init(opts.LogLevel); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			var err error
			if a, err = newApp(opts, log.Log, out); err != nil {
				return err
			}
			if sess := a.bootstrap(cmd.Context()); sess != nil {
				a.printf("Welcome back, %s (%s)\n", displayName(sess), sess.Role)
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a != nil {
				a.close()
				_ = a.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.printf("Type 'help' for a list of commands.\n")
			repl(cmd.Context(), a, prompt.New(in, out))
			return nil
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.PersistentFlags().AddGoFlagSet(config.NewFlagSet("gophshop", opts))

	var admin bool
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			role := models.RoleCustomer
			if admin {
				role = models.RoleAdmin
			}
			return runLogin(cmd.Context(), a, prompt.New(in, out), role)
		},
	}
	loginCmd.Flags().BoolVar(&admin, "admin", false, "sign in to the admin console")

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored credential",
		Run: func(cmd *cobra.Command, _ []string) {
			a.sessions.Logout(cmd.Context())
			a.printf("Signed out\n")
		},
	}

	var (
		filter models.ProductFilter
		strict bool
	)
	productsCmd := &cobra.Command{
		Use:   "products",
		Short: "Browse the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProducts(cmd.Context(), a, filter, !strict)
		},
	}
	productsCmd.Flags().StringVar(&filter.MainCategory, "main", "", "main category")
	productsCmd.Flags().StringVar(&filter.Category, "category", "", "category")
	productsCmd.Flags().StringVar(&filter.Subcategory, "sub", "", "subcategory")
	productsCmd.Flags().IntVar(&filter.Page, "page", 1, "page number")
	productsCmd.Flags().IntVar(&filter.Limit, "limit", 12, "page size")
	productsCmd.Flags().BoolVar(&strict, "strict", false, "do not relax the filter when nothing matches")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show build version and date",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "GophShop Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		},
	}

	root.AddCommand(loginCmd, logoutCmd, productsCmd, versionCmd)
	return root
}

func displayName(s *models.Session) string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	if s.Email != "" {
		return s.Email
	}
	return s.UserID
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
