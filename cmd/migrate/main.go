package main

import (
	"os" // Exit codes

	"biosculpture/internal/config" // Custom import path (Config)
	"biosculpture/internal/db"     // Custom import path (Database)

	"github.com/sirupsen/logrus" // Logging library
	"github.com/spf13/cobra"     // Command line interface
)

// Main entry point for migration
func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the storefront database schema",
		SilenceUsage: true,
	}
	root.AddCommand(upCmd(), seedCmd())
	return root
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Create or update every table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig() // Load configuration
			if err != nil {
				return err
			}
			database, err := db.Open(cfg)
			if err != nil {
				return err
			}
			return db.Migrate(database)
		},
	}
}

func seedCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Migrate, then create built-in roles, default point rules and a superadmin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			database, err := db.Open(cfg)
			if err != nil {
				return err
			}
			if err := db.Migrate(database); err != nil {
				return err
			}
			return db.Seed(database, email, password)
		},
	}
	cmd.Flags().StringVar(&email, "email", os.Getenv("ADMIN_EMAIL"), "superadmin email")
	cmd.Flags().StringVar(&password, "password", os.Getenv("ADMIN_PASSWORD"), "superadmin password (at least 8 characters)")
	return cmd
}
