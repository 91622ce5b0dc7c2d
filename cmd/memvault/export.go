package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/memvault/memvault/internal/cli"
	"github.com/memvault/memvault/pkg/model"
)

// Export command flags.
var (
	exportOutput string
	exportTitles []string
	exportForce  bool
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: stdout)")
	exportCmd.Flags().StringSliceVarP(&exportTitles, "title", "t", nil, "Titles to export (glob pattern supported)")
	exportCmd.Flags().BoolVar(&exportForce, "force", false, "Overwrite existing file without confirmation")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export credentials as plaintext JSON",
	Long: `Export decrypted credentials as JSON.

The output contains sensitive values in plaintext. Keep it out of
version control and delete it when done.

Examples:
  # Export everything to stdout
  memvault export

  # Export selected credentials to a file
  memvault export -t "aws*" -o aws.json

  # Overwrite an existing file
  memvault export -o backup.json --force`,
	RunE: executeExport,
}

// exportDocument is the top-level JSON structure.
type exportDocument struct {
	Version     int                       `json:"version"`
	ExportedAt  string                    `json:"exported_at"`
	Credentials []*model.CredentialRecord `json:"credentials"`
}

func executeExport(cmd *cobra.Command, args []string) error {
	m, err := openSession()
	if err != nil {
		return err
	}
	defer m.Lock()

	records, err := m.ListCredentials()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no credentials in archive")
	}

	if len(exportTitles) > 0 {
		records, err = filterByTitles(records, exportTitles)
		if err != nil {
			return err
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return strings.ToLower(records[i].Title) < strings.ToLower(records[j].Title)
	})

	doc := exportDocument{
		Version:     1,
		ExportedAt:  time.Now().UTC().Format(time.RFC3339),
		Credentials: records,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	output := string(data) + "\n"

	if exportOutput == "" {
		fmt.Fprint(os.Stderr, "WARNING: output contains plaintext secrets, do not commit it to version control\n")
		fmt.Print(output)
	} else {
		if err := writeSecureFile(exportOutput, output, exportForce); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported %d credentials to %s\n", len(records), exportOutput)
	}
	return nil
}

// filterByTitles keeps records whose titles match any of the patterns.
func filterByTitles(records []*model.CredentialRecord, patterns []string) ([]*model.CredentialRecord, error) {
	titles := make([]string, len(records))
	byTitle := make(map[string]*model.CredentialRecord, len(records))
	for i, rec := range records {
		titles[i] = rec.Title
		byTitle[rec.Title] = rec
	}

	matched, err := cli.MatchTitlesAll(patterns, titles)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("no credentials match the given title patterns")
	}

	result := make([]*model.CredentialRecord, 0, len(matched))
	for _, title := range matched {
		result = append(result, byTitle[title])
	}
	return result, nil
}

// writeSecureFile writes content to a file with 0600 permissions, refusing
// symlinks and system directories.
func writeSecureFile(path string, content string, force bool) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	sensitivePaths := []string{"/etc/", "/usr/", "/bin/", "/sbin/", "/var/log/", "/var/run/"}
	for _, sensitive := range sensitivePaths {
		if strings.HasPrefix(absPath, sensitive) {
			return fmt.Errorf("refusing to write to system directory: %s", absPath)
		}
	}

	info, err := os.Lstat(absPath)
	if err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("refusing to write to symlink: %s", absPath)
		}
		if !force {
			return fmt.Errorf("file already exists: %s (use --force to overwrite)", absPath)
		}
	}

	dir := filepath.Dir(absPath)
	if dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(absPath, flags, 0600)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("file already exists: %s (use --force to overwrite)", absPath)
		}
		return fmt.Errorf("create file: %w", err)
	}

	_, writeErr := f.WriteString(content)
	closeErr := f.Close()
	if writeErr != nil {
		return fmt.Errorf("write file: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close file: %w", closeErr)
	}
	return nil
}
