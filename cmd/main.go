package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hw-transit/ptschedule/config"
	"github.com/hw-transit/ptschedule/parse"
	"github.com/hw-transit/ptschedule/source"
	"github.com/hw-transit/ptschedule/storage"
)

var rootCmd = &cobra.Command{
	Use:               "ptschedule",
	Short:             "MATSim transit schedule generator",
	Long:              "Generates synthetic MATSim transit schedules and vehicles from line tables",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var (
	envDir    string
	input     string
	encoding  string
	sqliteDir string
	postgres  string
)

func init() {
	defaults := config.Default()

	rootCmd.PersistentFlags().StringVarP(&envDir, "env-dir", "", ".", "Directory holding .env and .env.local")
	rootCmd.PersistentFlags().StringVarP(&input, "input", "i", defaults.Input, "Input directory or base URL")
	rootCmd.PersistentFlags().StringVarP(&encoding, "encoding", "", defaults.Encoding, "Text encoding of input tables (cp1252, utf-8)")
	rootCmd.PersistentFlags().StringVarP(&sqliteDir, "sqlite-dir", "", "", "Store runs in SQLite databases in this directory")
	rootCmd.PersistentFlags().StringVarP(&postgres, "postgres", "", "", "Store runs in Postgres, using this connection string")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// Environment and .env files provide defaults for flags not given on
// the command line.
func loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	for _, f := range []struct {
		name  string
		value string
		dst   *string
	}{
		{"input", cfg.Input, &input},
		{"encoding", cfg.Encoding, &encoding},
		{"sqlite-dir", cfg.SQLiteDir, &sqliteDir},
		{"postgres", cfg.Postgres, &postgres},
		{"rollover", cfg.Rollover, &rollover},
		{"vehicle-type", cfg.VehicleType, &vehicleType},
	} {
		if flags.Lookup(f.name) == nil || flags.Changed(f.name) {
			continue
		}
		*f.dst = f.value
	}

	return nil
}

func newLoader() (*parse.Loader, error) {
	src, err := source.New(input)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}

	enc, err := parse.ParseEncoding(encoding)
	if err != nil {
		return nil, err
	}

	return parse.NewLoader(src, enc), nil
}

// Storage selected by flags, or nil if none was.
func openStorage() (storage.Storage, error) {
	if postgres != "" && sqliteDir != "" {
		return nil, fmt.Errorf("--postgres and --sqlite-dir are mutually exclusive")
	}

	if postgres != "" {
		s, err := storage.NewPSQLStorage(postgres, false)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return s, nil
	}

	if sqliteDir != "" {
		err := os.MkdirAll(sqliteDir, 0755)
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", sqliteDir, err)
		}
		s, err := storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: sqliteDir})
		if err != nil {
			return nil, fmt.Errorf("opening sqlite storage: %w", err)
		}
		return s, nil
	}

	return nil, nil
}
