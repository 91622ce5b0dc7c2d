package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the CLI configuration, read from the user config directory with
// MEMVAULT_* environment overrides.
type Config struct {
	// ArchivePath is the default encrypted archive location.
	ArchivePath string `mapstructure:"archive_path"`

	// AuditLog is the audit log directory. Empty disables auditing.
	AuditLog string `mapstructure:"audit_log"`

	// ClipboardClearSeconds is how long clipboard copies survive before the
	// clipboard is wiped. Zero disables the wipe.
	ClipboardClearSeconds int `mapstructure:"clipboard_clear_seconds"`

	// BackupDir is where archive snapshots go.
	BackupDir string `mapstructure:"backup_dir"`
}

// configDir returns the memvault config directory.
func configDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not get user config directory: %w", err)
	}
	return filepath.Join(base, "memvault"), nil
}

// dataDir returns the default directory for archives and audit logs.
func dataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}
	return filepath.Join(home, ".memvault"), nil
}

// loadConfig reads config.yaml from the config directory, applying defaults
// and environment variables. A missing file is fine; defaults carry.
func loadConfig(explicitPath string) (Config, error) {
	var cfg Config

	dir, err := dataDir()
	if err != nil {
		return cfg, err
	}

	v := viper.New()
	v.SetDefault("archive_path", filepath.Join(dir, "vault.mv"))
	v.SetDefault("audit_log", filepath.Join(dir, "audit"))
	v.SetDefault("clipboard_clear_seconds", 30)
	v.SetDefault("backup_dir", filepath.Join(dir, "backups"))

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else if cfgDir, err := configDir(); err == nil {
		v.AddConfigPath(cfgDir)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// An explicit --config path that does not exist is an error too.
			if explicitPath != "" || !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("memvault")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
