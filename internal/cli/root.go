// Package cli implements the stride command line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/momoosa/stride/internal/config"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	Version = "dev" // Set by goreleaser
)

var rootCmd = &cobra.Command{
	Use:   "stride",
	Short: "Track time toward daily goals",
	Long: `Stride tracks timed sessions against daily goals and keeps every
process on the machine agreeing about the one session that is running.

Quick Start:
  stride goals add "Meditate" --target 10m   # Create a goal
  stride start meditate                      # Start its timer
  stride status                              # What is running right now
  stride watch                               # Live view of all goals
  stride stop                                # End the session`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "completion" || cmd.Name() == "version" {
			return nil
		}

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/stride/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		// Timer
		newStartCmd(),
		newStopCmd(),
		newPauseCmd(),
		newResumeCmd(),
		newToggleCmd(),
		newStatusCmd(),
		newWatchCmd(),

		// Goals and history
		newGoalsCmd(),
		newHistoryCmd(),
		newReportCmd(),
		newSyncCmd(),

		// Utilities
		newConfigCmd(),
		newVersionCmd(),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stride version %s\n", Version)
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateDefault()
			if err != nil {
				return err
			}
			fmt.Printf("Created config file: %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.DefaultPath())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Print(cfg, os.Stdout)
		},
	})

	return cmd
}
