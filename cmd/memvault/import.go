package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/memvault/memvault/pkg/importer"
)

// Import flags.
var (
	importFrom   string
	importTag    string
	importDryRun bool
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importFrom, "from", "", "Export source: 1password, bitwarden, lastpass (required)")
	importCmd.Flags().StringVar(&importTag, "tag", "", "Add a tag to all imported credentials")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Parse and report without modifying the archive")
	_ = importCmd.MarkFlagRequired("from")
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import credentials from another password manager",
	Long: `Import credentials from a 1Password, Bitwarden, or LastPass export file.

Imported titles that collide with existing credentials get a numeric
suffix; nothing is overwritten.

Examples:
  memvault import --from bitwarden export.json
  memvault import --from lastpass --tag migrated export.csv
  memvault import --from 1password --dry-run export.csv`,
	Args: cobra.ExactArgs(1),
	RunE: executeImport,
}

func executeImport(cmd *cobra.Command, args []string) error {
	source := importer.Source(strings.ToLower(importFrom))
	parser, err := importer.GetParser(source)
	if err != nil {
		return fmt.Errorf("invalid --from value %q: must be one of %v", importFrom, importer.ValidSources())
	}

	data, err := readExportFile(args[0])
	if err != nil {
		return err
	}

	result, err := parser.Parse(data)
	if err != nil {
		return fmt.Errorf("parse %s file: %w", importFrom, err)
	}

	for _, warning := range result.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
	}
	for _, skipped := range result.Skipped {
		fmt.Fprintf(os.Stderr, "Skipped: %s (%s)\n", skipped.Name, skipped.Reason)
	}

	if len(result.Records) == 0 {
		fmt.Println("No credentials found in file")
		return nil
	}
	fmt.Printf("Found %d credentials to import\n", len(result.Records))

	if importTag != "" {
		for _, rec := range result.Records {
			rec.AddTag(importTag)
		}
	}

	sort.Slice(result.Records, func(i, j int) bool {
		return result.Records[i].Title < result.Records[j].Title
	})

	if importDryRun {
		for _, rec := range result.Records {
			fmt.Printf("[dry-run] Would import: %s (%d fields)\n", rec.Title, len(rec.Fields))
		}
		return nil
	}

	m, err := openSession()
	if err != nil {
		return err
	}

	existing, err := m.ListCredentials()
	if err != nil {
		m.Lock()
		return err
	}
	titles := make(map[string]bool, len(existing))
	for _, rec := range existing {
		titles[strings.ToLower(rec.Title)] = true
	}

	var imported, failed int
	for _, rec := range result.Records {
		rec.Title = uniqueTitle(rec.Title, titles)
		if _, err := m.AddCredential(rec); err != nil {
			fmt.Fprintf(os.Stderr, "failed to import %q: %v\n", rec.Title, err)
			failed++
			continue
		}
		titles[strings.ToLower(rec.Title)] = true
		fmt.Printf("Imported: %s (%d fields)\n", rec.Title, len(rec.Fields))
		imported++
	}

	if err := saveAndClose(m); err != nil {
		return err
	}

	fmt.Printf("\n%s Imported %d credentials", color.GreenString("✓"), imported)
	if failed > 0 {
		fmt.Printf(", %d failed", failed)
	}
	fmt.Println()
	if failed > 0 {
		return fmt.Errorf("%d credentials failed to import", failed)
	}
	return nil
}

// readExportFile reads an export file, rejecting symlinks.
func readExportFile(path string) ([]byte, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("access file: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("refusing to read symlink: %s", absPath)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// uniqueTitle appends a numeric suffix until the title is unused.
func uniqueTitle(title string, taken map[string]bool) string {
	if !taken[strings.ToLower(title)] {
		return title
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", title, i)
		if !taken[strings.ToLower(candidate)] {
			return candidate
		}
	}
}
