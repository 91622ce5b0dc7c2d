package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/memvault/memvault/pkg/security"
)

// Security command flags.
var (
	securityVerbose    bool
	securityJSON       bool
	securityStaleDays  int
	securityIncludeIDs bool
)

func init() {
	rootCmd.AddCommand(securityCmd)
	securityCmd.AddCommand(securityDuplicatesCmd)

	securityCmd.Flags().BoolVarP(&securityVerbose, "verbose", "v", false, "Show all details including suggestions")
	securityCmd.Flags().BoolVar(&securityJSON, "json", false, "Output in JSON format")
	securityCmd.Flags().IntVar(&securityStaleDays, "stale-days", 365, "Days after which an unrotated password counts as stale")
	securityCmd.Flags().BoolVar(&securityIncludeIDs, "ids", false, "Include credential ids in the report")
}

var securityCmd = &cobra.Command{
	Use:   "security",
	Short: "Analyze archive security health",
	Long: `Analyze the security health of the archive and get recommendations.

The score is calculated from:
  - Password Strength (0-25): average strength of password fields
  - Uniqueness (0-25): fraction of unique passwords
  - Freshness (0-25): fraction of recently rotated passwords
  - Coverage (0-25): template required-field coverage

Example:
  memvault security            # Show score and top issues
  memvault security --verbose  # Also show suggestions
  memvault security --json     # Machine-readable output`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openSession()
		if err != nil {
			return err
		}
		defer m.Lock()

		records, err := m.ListCredentials()
		if err != nil {
			return err
		}

		report, err := security.NewAnalyzer().
			WithStaleDays(securityStaleDays).
			Analyze(records, securityIncludeIDs)
		if err != nil {
			return fmt.Errorf("analyze archive: %w", err)
		}

		if securityJSON {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		printHealthReport(report, securityVerbose)
		return nil
	},
}

var securityDuplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "List credentials sharing a password",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openSession()
		if err != nil {
			return err
		}
		defer m.Lock()

		records, err := m.ListCredentials()
		if err != nil {
			return err
		}

		groups, err := security.NewAnalyzer().FindDuplicates(records, true, 0)
		if err != nil {
			return fmt.Errorf("find duplicates: %w", err)
		}
		if len(groups) == 0 {
			fmt.Printf("%s No duplicate passwords found\n", color.GreenString("✓"))
			return nil
		}

		titles := make(map[string]string, len(records))
		for _, rec := range records {
			titles[rec.ID] = rec.Title
		}

		fmt.Printf("Duplicate passwords (%d groups)\n\n", len(groups))
		for i, group := range groups {
			fmt.Printf("%d. %d credentials share the same password:\n", i+1, group.Count)
			for _, id := range group.CredentialIDs {
				if title, ok := titles[id]; ok {
					fmt.Printf("   - %s\n", title)
				} else {
					fmt.Printf("   - %s\n", id)
				}
			}
			fmt.Println()
		}
		return nil
	},
}

// printHealthReport renders the report as formatted text.
func printHealthReport(report *security.HealthReport, verbose bool) {
	var rating string
	switch {
	case report.Overall >= 90:
		rating = "Excellent"
	case report.Overall >= 70:
		rating = "Good"
	case report.Overall >= 50:
		rating = "Fair"
	default:
		rating = "Needs Attention"
	}

	fmt.Printf("Security Score: %d/100 (%s)\n\n", report.Overall, rating)

	fmt.Println("Components:")
	fmt.Printf("  Password Strength: %2d/25 %s\n", report.Components.StrengthScore, progressBar(report.Components.StrengthScore, 25))
	fmt.Printf("  Uniqueness:        %2d/25 %s\n", report.Components.UniquenessScore, progressBar(report.Components.UniquenessScore, 25))
	fmt.Printf("  Freshness:         %2d/25 %s\n", report.Components.FreshnessScore, progressBar(report.Components.FreshnessScore, 25))
	fmt.Printf("  Coverage:          %2d/25 %s\n", report.Components.CoverageScore, progressBar(report.Components.CoverageScore, 25))
	fmt.Println()

	if len(report.Issues) > 0 {
		fmt.Printf("Top issues (%d):\n", len(report.Issues))
		for i, issue := range report.Issues {
			typeLabel := strings.ToUpper(string(issue.Type))
			idInfo := ""
			if issue.CredentialID != "" {
				idInfo = fmt.Sprintf(" %q", issue.CredentialID)
			} else if len(issue.CredentialIDs) > 0 {
				idInfo = " " + strings.Join(issue.CredentialIDs, ", ")
			}
			fmt.Printf("  %d. [%s]%s: %s\n", i+1, typeLabel, idInfo, issue.Description)
		}
		if report.Truncated {
			fmt.Println("  (issue list truncated)")
		}
		fmt.Println()
	}

	if len(report.Suggestions) > 0 && verbose {
		fmt.Println("Suggestions:")
		for _, suggestion := range report.Suggestions {
			fmt.Printf("  - %s\n", suggestion)
		}
		fmt.Println()
	}
}

// progressBar creates a simple ASCII progress bar.
func progressBar(value, maxVal int) string {
	width := 20
	filled := value * width / maxVal
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
