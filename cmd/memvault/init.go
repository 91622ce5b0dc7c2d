package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/memvault/memvault/pkg/security"
	"github.com/memvault/memvault/pkg/session"
)

var initAllowWeak bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initAllowWeak, "allow-weak", false, "Accept a weak master passphrase")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new encrypted credential archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(filepath.Dir(cfg.ArchivePath), 0700); err != nil {
			return fmt.Errorf("create archive directory: %w", err)
		}

		passphrase, err := promptPassphrase("Enter master passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := promptPassphrase("Confirm master passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return errors.New("passphrases do not match")
		}

		strength := security.EvaluatePassphrase(passphrase)
		fmt.Printf("Passphrase strength: %s\n", strength)

		m := newManager()
		stop := startSpinner("Creating archive...")
		err = m.Create(cfg.ArchivePath, passphrase, session.CreateOptions{AllowWeak: initAllowWeak})
		stop()
		if err != nil {
			if errors.Is(err, session.ErrWeakPassphrase) {
				return fmt.Errorf("%w (use --allow-weak to accept it anyway)", err)
			}
			return err
		}
		defer m.Lock()

		for _, w := range m.Warnings() {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
		fmt.Printf("%s Archive created at %s\n", color.GreenString("✓"), cfg.ArchivePath)
		return nil
	},
}
