// Package config provides defaults for the command line tool, taken
// from the environment and optional .env files.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	EnvInput       = "PTSCHEDULE_INPUT"
	EnvEncoding    = "PTSCHEDULE_ENCODING"
	EnvRollover    = "PTSCHEDULE_ROLLOVER"
	EnvVehicleType = "PTSCHEDULE_VEHICLE_TYPE"
	EnvPostgres    = "PTSCHEDULE_POSTGRES"
	EnvSQLiteDir   = "PTSCHEDULE_SQLITE_DIR"
)

type Config struct {
	Input       string
	Encoding    string
	Rollover    string
	VehicleType string
	Postgres    string
	SQLiteDir   string
}

func Default() Config {
	return Config{
		Input:       ".",
		Encoding:    "cp1252",
		Rollover:    "legacy",
		VehicleType: "S-Bahn_veh_type",
	}
}

// Loads .env and then .env.local from dir into the environment.
// Variables already set are kept, except that .env.local overrides
// everything. Missing files are skipped.
func LoadEnvFiles(dir string) error {
	env := filepath.Join(dir, ".env")
	if _, err := os.Stat(env); err == nil {
		if err := godotenv.Load(env); err != nil {
			return err
		}
	}

	local := filepath.Join(dir, ".env.local")
	if _, err := os.Stat(local); err == nil {
		if err := godotenv.Overload(local); err != nil {
			return err
		}
	}

	return nil
}

// Default config, with any non-empty PTSCHEDULE_* variable taking
// precedence.
func FromEnv() Config {
	cfg := Default()
	for _, v := range []struct {
		name  string
		field *string
	}{
		{EnvInput, &cfg.Input},
		{EnvEncoding, &cfg.Encoding},
		{EnvRollover, &cfg.Rollover},
		{EnvVehicleType, &cfg.VehicleType},
		{EnvPostgres, &cfg.Postgres},
		{EnvSQLiteDir, &cfg.SQLiteDir},
	} {
		if value := os.Getenv(v.name); value != "" {
			*v.field = value
		}
	}
	return cfg
}

// Loads env files from dir and returns the resulting config.
func Load(dir string) (Config, error) {
	err := LoadEnvFiles(dir)
	if err != nil {
		return Config{}, err
	}
	return FromEnv(), nil
}
