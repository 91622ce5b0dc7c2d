package main

import (
	"fmt"
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/memvault/memvault/pkg/model"
	"github.com/memvault/memvault/pkg/totp"
)

var totpCopy bool

func init() {
	rootCmd.AddCommand(totpCmd)
	totpCmd.Flags().BoolVarP(&totpCopy, "copy", "c", false, "Copy the code to the clipboard")
}

var totpCmd = &cobra.Command{
	Use:   "totp [title]",
	Short: "Generate the current TOTP code for a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openSession()
		if err != nil {
			return err
		}

		rec, err := findByTitle(m, args[0])
		m.Lock()
		if err != nil {
			return err
		}

		secret := totpSecret(rec)
		if secret == "" {
			return fmt.Errorf("%q has no TOTP secret field", rec.Title)
		}

		now := time.Now()
		code, err := totp.GenerateAt(secret, now)
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}

		fmt.Println(code)
		fmt.Fprintf(os.Stderr, "Valid for %d more seconds\n", totp.Remaining(now))

		if totpCopy {
			if err := clipboard.WriteAll(code); err != nil {
				fmt.Fprintf(os.Stderr, "warning: copy to clipboard: %v\n", err)
			}
		}
		return nil
	},
}

// totpSecret finds the record's TOTP secret, preferring typed fields over
// conventional names.
func totpSecret(rec *model.CredentialRecord) string {
	for _, f := range rec.Fields {
		if f.Type == model.FieldTypeTOTPSecret && f.Value != "" {
			return f.Value
		}
	}
	for _, name := range []string{"totp_secret", "totp", "otp"} {
		if f, ok := rec.Field(name); ok && f.Value != "" {
			return f.Value
		}
	}
	return ""
}
