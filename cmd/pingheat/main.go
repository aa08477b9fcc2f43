package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/wellsgz/pingheat/internal/api"
	"github.com/wellsgz/pingheat/internal/config"
	"github.com/wellsgz/pingheat/internal/paths"
)

var (
	configPath string
	baseDir    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pingheat",
		Short: "Ping, jitter and loss monitor with calendar heatmaps",
		Long: `pingheat probes a set of targets with bursts of echo requests, appends every
result to a per-target log and rebuilds hourly heatmaps from those logs.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: per-user or /etc/pingheat location)")
	root.PersistentFlags().StringVar(&baseDir, "base", "", "keep config, data and logs below this directory")

	root.AddCommand(newRunCmd(), newReplayCmd(), newInitCmd(), newVersionCmd())
	return root
}

// resolvePaths returns the layout selected by --base, or the default one
func resolvePaths() (*paths.Paths, error) {
	if baseDir != "" {
		return paths.ForBase(baseDir), nil
	}
	return paths.DefaultPaths()
}

// loadConfig reads --config, or the default config file which is created on
// first use
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		p, err := resolvePaths()
		if err != nil {
			return nil, err
		}
		if err := p.EnsureDirectories(); err != nil {
			return nil, err
		}
		created, err := p.CreateDefaultConfig()
		if err != nil {
			return nil, err
		}
		if created {
			fmt.Fprintf(os.Stderr, "Created default config at %s\n", p.ConfigFile)
		}
		path = p.ConfigFile
	}

	return config.Load(path)
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the default config and targets file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := resolvePaths()
			if err != nil {
				return err
			}
			if err := p.EnsureDirectories(); err != nil {
				return err
			}
			created, err := p.CreateDefaultConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if created {
				fmt.Fprintf(out, "Created %s\n", p.ConfigFile)
			} else {
				fmt.Fprintf(out, "Config already exists at %s\n", p.ConfigFile)
			}
			fmt.Fprintln(out, p)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pingheat %s (%s, %s/%s)\n", api.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
