package main

import (
	"fmt"
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	clipField   string
	clipNoClear bool
)

func init() {
	rootCmd.AddCommand(clipCmd)
	clipCmd.Flags().StringVar(&clipField, "field", "password", "Field to copy")
	clipCmd.Flags().BoolVar(&clipNoClear, "no-clear", false, "Leave the value on the clipboard")
}

var clipCmd = &cobra.Command{
	Use:   "clip [title]",
	Short: "Copy a field value to the clipboard",
	Long: `Copy one field of a credential to the system clipboard. The
clipboard is wiped after the configured timeout unless --no-clear is given.
Anything with clipboard access can read the value while it is there.`,
	Args: cobra.ExactArgs(1),
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

		f, ok := rec.Field(clipField)
		if !ok {
			return fmt.Errorf("field %q not found on %q", clipField, rec.Title)
		}
		if err := clipboard.WriteAll(f.Value); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}

		fmt.Printf("%s Copied %s of %q to clipboard\n", color.GreenString("✓"), clipField, rec.Title)

		if clipNoClear || cfg.ClipboardClearSeconds <= 0 {
			return nil
		}
		fmt.Fprintf(os.Stderr, "Clearing clipboard in %d seconds...\n", cfg.ClipboardClearSeconds)
		time.Sleep(time.Duration(cfg.ClipboardClearSeconds) * time.Second)

		// Only wipe if our value is still there; the user may have copied
		// something else in the meantime.
		current, err := clipboard.ReadAll()
		if err == nil && current == f.Value {
			if err := clipboard.WriteAll(""); err != nil {
				return fmt.Errorf("clear clipboard: %w", err)
			}
			fmt.Fprintln(os.Stderr, "Clipboard cleared")
		}
		return nil
	},
}
