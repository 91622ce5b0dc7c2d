package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/memvault/memvault/pkg/security"
	"github.com/memvault/memvault/pkg/session"
)

var passwdAllowWeak bool

func init() {
	rootCmd.AddCommand(passwdCmd)
	passwdCmd.Flags().BoolVar(&passwdAllowWeak, "allow-weak", false, "Accept a weak new passphrase")
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the archive passphrase",
	Long: `Change the passphrase protecting the archive.

The archive is decrypted with the current passphrase and re-encrypted
under the new one. The new passphrase must pass the strength check
unless --allow-weak is given.`,
	RunE: executePasswd,
}

func executePasswd(cmd *cobra.Command, args []string) error {
	m, err := openSession()
	if err != nil {
		return err
	}
	defer m.Lock()

	next, err := promptPassphrase("New passphrase: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassphrase("Confirm new passphrase: ")
	if err != nil {
		return err
	}
	if next != confirm {
		return fmt.Errorf("passphrases do not match")
	}

	strength := security.EvaluatePassphrase(next)
	fmt.Fprintf(os.Stderr, "Passphrase strength: %s\n", strength)

	stop := startSpinner("Re-encrypting archive...")
	err = m.ChangePassphrase(next, session.CreateOptions{AllowWeak: passwdAllowWeak})
	stop()
	if err != nil {
		if errors.Is(err, session.ErrWeakPassphrase) {
			return fmt.Errorf("%w (use --allow-weak to accept it anyway)", err)
		}
		return err
	}

	fmt.Printf("%s Passphrase changed\n", color.GreenString("✓"))
	return nil
}
