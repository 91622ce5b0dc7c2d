package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/memvault/memvault/pkg/audit"
)

// Audit command flags.
var (
	auditLimit int
	auditSince string

	auditExportFormat string
	auditExportSince  string
	auditExportUntil  string
	auditExportOutput string

	auditPruneOlderThan string
	auditPruneDryRun    bool
	auditPruneForce     bool
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditExportCmd)
	auditCmd.AddCommand(auditPruneCmd)

	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum number of events to show")
	auditListCmd.Flags().StringVar(&auditSince, "since", "", "Show events since duration (e.g. 24h, 30d)")

	auditExportCmd.Flags().StringVar(&auditExportFormat, "format", "json", "Output format: json, csv")
	auditExportCmd.Flags().StringVar(&auditExportSince, "since", "", "Export events since duration (e.g. 30d)")
	auditExportCmd.Flags().StringVar(&auditExportUntil, "until", "", "Export events until time (RFC 3339)")
	auditExportCmd.Flags().StringVarP(&auditExportOutput, "output", "o", "", "Output file path (default: stdout)")

	auditPruneCmd.Flags().StringVar(&auditPruneOlderThan, "older-than", "", "Delete events older than duration (e.g. 90d, 1y)")
	auditPruneCmd.Flags().BoolVar(&auditPruneDryRun, "dry-run", false, "Show what would be deleted without deleting")
	auditPruneCmd.Flags().BoolVar(&auditPruneForce, "force", false, "Skip confirmation prompt")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit trail operations",
}

// newAuditLogger returns the configured audit logger, or an error when no
// audit path is configured.
func newAuditLogger() (*audit.Logger, error) {
	if cfg.AuditLog == "" {
		return nil, fmt.Errorf("no audit log path configured (set audit_log in config)")
	}
	return audit.NewLogger(cfg.AuditLog), nil
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit trail events",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newAuditLogger()
		if err != nil {
			return err
		}

		var since time.Time
		if auditSince != "" {
			duration, err := parseDuration(auditSince)
			if err != nil {
				return fmt.Errorf("invalid since format: %w", err)
			}
			since = time.Now().Add(-duration)
		}

		events, err := logger.ListEvents(auditLimit, since)
		if err != nil {
			return fmt.Errorf("list audit events: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		for _, event := range events {
			line := fmt.Sprintf("%s %s %s", event.Timestamp, event.Operation, event.Result)
			if event.Ref != "" {
				ref := event.Ref
				if len(ref) > 16 {
					ref = ref[:16] + "..."
				}
				line += fmt.Sprintf(" ref:%s", ref)
			}
			if event.Error != nil {
				line += fmt.Sprintf(" error:%s", event.Error.Code)
			}
			fmt.Println(line)
		}
		fmt.Printf("\nTotal: %d events\n", len(events))
		return nil
	},
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify audit trail HMAC chain integrity",
	Long: `Verify the audit trail's HMAC chain.

Record HMACs are keyed by the master passphrase, so verification prompts
for it. The archive itself is not opened.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newAuditLogger()
		if err != nil {
			return err
		}

		passphrase, err := promptPassphrase("Enter master passphrase: ")
		if err != nil {
			return err
		}
		if err := logger.SetHMACKey([]byte(passphrase)); err != nil {
			return err
		}

		fmt.Println("Verifying audit trail integrity...")
		result, err := logger.Verify()
		if err != nil {
			return fmt.Errorf("verify audit trail: %w", err)
		}

		if result.Valid {
			fmt.Printf("%s Audit trail verified: %d records, chain intact\n",
				color.GreenString("✓"), result.RecordsTotal)
		} else {
			fmt.Printf("%s Audit trail verification FAILED\n", color.RedString("✗"))
			fmt.Printf("  Records total: %d\n", result.RecordsTotal)
			fmt.Println("  Errors:")
			for _, e := range result.Errors {
				fmt.Printf("    - %s\n", e)
			}
			return fmt.Errorf("audit trail integrity check failed")
		}

		jsonResult, _ := json.Marshal(result)
		fmt.Printf("\nJSON: %s\n", string(jsonResult))
		return nil
	},
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit trail events to JSON or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newAuditLogger()
		if err != nil {
			return err
		}

		if auditExportFormat != "json" && auditExportFormat != "csv" {
			return fmt.Errorf("invalid format: %s (use 'json' or 'csv')", auditExportFormat)
		}

		var since, until time.Time
		if auditExportSince != "" {
			duration, err := parseDuration(auditExportSince)
			if err != nil {
				return fmt.Errorf("invalid since format: %w", err)
			}
			since = time.Now().Add(-duration)
		}
		if auditExportUntil != "" {
			until, err = time.Parse(time.RFC3339, auditExportUntil)
			if err != nil {
				return fmt.Errorf("invalid until format (use RFC 3339): %w", err)
			}
		}

		data, err := logger.Export(auditExportFormat, since, until)
		if err != nil {
			return fmt.Errorf("export audit events: %w", err)
		}

		if auditExportOutput == "" {
			os.Stdout.Write(data)
			return nil
		}
		if err := writeSecureFile(auditExportOutput, string(data), true); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Audit events exported to %s\n", auditExportOutput)
		return nil
	},
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old audit trail events",
	RunE: func(cmd *cobra.Command, args []string) error {
		if auditPruneOlderThan == "" {
			return fmt.Errorf("--older-than flag is required")
		}
		duration, err := parseDuration(auditPruneOlderThan)
		if err != nil {
			return fmt.Errorf("invalid older-than format: %w", err)
		}

		logger, err := newAuditLogger()
		if err != nil {
			return err
		}

		count, err := logger.PrunePreview(duration)
		if err != nil {
			return fmt.Errorf("preview prune: %w", err)
		}
		if auditPruneDryRun {
			fmt.Printf("Would delete %d audit events older than %s\n", count, auditPruneOlderThan)
			return nil
		}
		if count == 0 {
			fmt.Println("No audit events to delete")
			return nil
		}

		if !auditPruneForce {
			fmt.Printf("This will delete %d audit events older than %s.\n", count, auditPruneOlderThan)
			fmt.Print("Are you sure? [y/N]: ")
			var response string
			if _, err := fmt.Scanln(&response); err != nil {
				fmt.Println("Aborted")
				return nil
			}
			if response != "y" && response != "Y" {
				fmt.Println("Aborted")
				return nil
			}
		}

		deleted, err := logger.Prune(duration)
		if err != nil {
			return fmt.Errorf("prune audit events: %w", err)
		}
		fmt.Printf("Deleted %d audit events\n", deleted)
		return nil
	},
}
