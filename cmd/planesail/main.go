package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"planesail/internal/app"
)

func main() {
	config := app.DefaultConfig()

	rootCmd := newRootCmd(&config, func(c app.Config) error {
		return app.NewApplication(c).Start()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd binds the command line to config and hands the final
// configuration to run
func newRootCmd(config *app.Config, run func(app.Config) error) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "planesail",
		Short: "Aircraft and ship track server",
		Long: `Plane/Sail track server.

Receives AIS NMEA over UDP, SBS BaseStation lines over TCP (direct and MLAT)
and dump1090 aircraft.json over HTTP, and merges them into one table of live
aircraft and ship tracks.

Example usage:
  planesail --ais-port 10110 --sbs-host localhost --snapshot-file tracks.json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.ShowVersion {
				app.ShowVersion(cmd.OutOrStdout())
				return nil
			}

			if config.ConfigFile != "" {
				f, err := app.LoadFile(config.ConfigFile)
				if err != nil {
					return err
				}
				f.Apply(config, cmd.Flags().Changed)
			}

			return run(*config)
		},
	}

	flags := rootCmd.Flags()
	flags.IntVar(&config.AISPort, "ais-port", config.AISPort, "UDP port for AIS NMEA sentences")
	flags.StringVar(&config.SBSHost, "sbs-host", config.SBSHost, "SBS BaseStation host (empty to disable)")
	flags.IntVar(&config.SBSPort, "sbs-port", config.SBSPort, "SBS BaseStation port")
	flags.StringVar(&config.MLATHost, "mlat-host", config.MLATHost, "SBS MLAT host (empty to disable)")
	flags.IntVar(&config.MLATPort, "mlat-port", config.MLATPort, "SBS MLAT port")
	flags.StringVar(&config.Dump1090URL, "dump1090-url", config.Dump1090URL, "dump1090 aircraft.json URL (empty to disable)")
	flags.StringVarP(&config.ConfigFile, "config", "c", "", "YAML configuration file")
	flags.StringVar(&config.MetricsAddr, "metrics-addr", config.MetricsAddr, "Address to serve Prometheus metrics on (empty to disable)")
	flags.StringVar(&config.SnapshotFile, "snapshot-file", config.SnapshotFile, "File to write track snapshots to (empty to disable)")
	flags.DurationVar(&config.SnapshotInterval, "snapshot-interval", config.SnapshotInterval, "Interval between track snapshots")
	flags.StringVarP(&config.ArchiveDir, "archive-dir", "l", config.ArchiveDir, "Directory for raw feed archives (empty to disable)")
	flags.IntVar(&config.ArchiveMaxDays, "archive-max-days", config.ArchiveMaxDays, "Days of archives to keep (0 keeps all)")
	flags.BoolVarP(&config.LogRotateUTC, "log-rotate-utc", "u", config.LogRotateUTC, "Use UTC for archive rotation")
	flags.BoolVarP(&config.Verbose, "verbose", "v", false, "Verbose logging")
	flags.BoolVar(&config.ShowVersion, "version", false, "Show version information")

	return rootCmd
}
