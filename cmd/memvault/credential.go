package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/memvault/memvault/internal/cli"
	"github.com/memvault/memvault/pkg/model"
	"github.com/memvault/memvault/pkg/repo"
	"github.com/memvault/memvault/pkg/session"
)

// Add flags.
var (
	addType     string
	addTemplate string
	addFields   []string
	addTags     string
	addNotes    string
	addFolder   string
	addFavorite bool
)

// Get flags.
var (
	getField  string
	getFields bool
	getReveal bool
)

// List flags.
var (
	listTag    string
	listType   string
	listFolder string
)

// Search flags.
var (
	searchTags      string
	searchType      string
	searchFolder    string
	searchFavorites bool
)

var rmForce bool

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(rmCmd)

	addCmd.Flags().StringVar(&addType, "type", "login", "Credential type (free-form tag)")
	addCmd.Flags().StringVar(&addTemplate, "template", "", "Start from a template (login, credit_card, secure_note, api_key, wifi)")
	addCmd.Flags().StringArrayVar(&addFields, "field", nil, "Field value (name=value, can be repeated)")
	addCmd.Flags().StringVar(&addTags, "tags", "", "Comma-separated tags")
	addCmd.Flags().StringVar(&addNotes, "notes", "", "Free-text notes")
	addCmd.Flags().StringVar(&addFolder, "folder", "", "Folder path (e.g. work/infra)")
	addCmd.Flags().BoolVar(&addFavorite, "favorite", false, "Mark as favorite")

	getCmd.Flags().StringVar(&getField, "field", "", "Print one field value")
	getCmd.Flags().BoolVar(&getFields, "fields", false, "List field names only")
	getCmd.Flags().BoolVar(&getReveal, "reveal", false, "Show sensitive values in plain text")

	listCmd.Flags().StringVar(&listTag, "tag", "", "Filter by tag")
	listCmd.Flags().StringVar(&listType, "type", "", "Filter by credential type")
	listCmd.Flags().StringVar(&listFolder, "folder", "", "Filter by folder path")

	searchCmd.Flags().StringVar(&searchTags, "tags", "", "Require comma-separated tags")
	searchCmd.Flags().StringVar(&searchType, "type", "", "Restrict to one credential type")
	searchCmd.Flags().StringVar(&searchFolder, "folder", "", "Restrict to a folder subtree")
	searchCmd.Flags().BoolVar(&searchFavorites, "favorites", false, "Favorites only")

	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "Skip confirmation")
}

var addCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Add a credential to the archive",
	Long: `Add a credential. Field values come from --field flags; template
fields without a --field value are prompted for interactively.

Examples:
  memvault add GitHub --field username=octocat --field password=...
  memvault add "Work Email" --template login
  memvault add "Visa" --template credit_card --tags personal`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := buildRecord(args[0])
		if err != nil {
			return err
		}

		m, err := openSession()
		if err != nil {
			return err
		}

		id, err := m.AddCredential(rec)
		if err != nil {
			m.Lock()
			return err
		}
		if err := saveAndClose(m); err != nil {
			return err
		}

		fmt.Printf("%s Added %q (%s)\n", color.GreenString("✓"), rec.Title, id)
		return nil
	},
}

// buildRecord assembles a record from the add flags, prompting for template
// fields that have no flag value.
func buildRecord(title string) (*model.CredentialRecord, error) {
	var rec *model.CredentialRecord
	if addTemplate != "" {
		tmpl, err := model.TemplateByName(addTemplate)
		if err != nil {
			return nil, err
		}
		rec = tmpl.NewRecord(title)
	} else {
		rec = model.NewCredentialRecord(title, addType)
	}

	provided := make(map[string]bool)
	for _, f := range addFields {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid field format %q (expected name=value)", f)
		}
		name, value := parts[0], parts[1]
		if existing, ok := rec.Field(name); ok {
			existing.Value = value
			rec.SetField(name, existing)
		} else {
			rec.SetField(name, model.NewField(fieldTypeForName(name), value))
		}
		provided[name] = true
	}

	if addTemplate != "" {
		if err := promptMissingFields(rec, provided); err != nil {
			return nil, err
		}
	}

	if addTags != "" {
		for _, tag := range strings.Split(addTags, ",") {
			rec.AddTag(strings.TrimSpace(tag))
		}
	}
	rec.Notes = addNotes
	rec.FolderPath = addFolder
	rec.Favorite = addFavorite
	return rec, nil
}

// promptMissingFields asks for template fields the flags did not cover.
// Optional fields may be left empty; sensitive input is not echoed.
func promptMissingFields(rec *model.CredentialRecord, provided map[string]bool) error {
	tmpl, err := model.TemplateByName(addTemplate)
	if err != nil {
		return err
	}
	for _, ft := range tmpl.Fields {
		if provided[ft.Name] {
			continue
		}
		label := ft.Label
		if !ft.Required {
			label += " (optional)"
		}

		var value string
		if ft.Sensitive && term.IsTerminal(int(os.Stdin.Fd())) {
			value, err = promptPassphrase(label + ": ")
		} else {
			fmt.Fprintf(os.Stderr, "%s: ", label)
			value, err = readLine()
		}
		if err != nil {
			return err
		}
		if value == "" {
			if ft.Required {
				return fmt.Errorf("field %q is required", ft.Name)
			}
			rec.RemoveField(ft.Name)
			continue
		}
		f, _ := rec.Field(ft.Name)
		f.Value = value
		rec.SetField(ft.Name, f)
	}
	return nil
}

// fieldTypeForName guesses a field type from a conventional field name so ad
// hoc --field flags still get sensible sensitivity defaults.
func fieldTypeForName(name string) model.FieldType {
	switch strings.ToLower(name) {
	case "password", "pass", "pwd", "secret", "key", "token":
		return model.FieldTypePassword
	case "username", "user", "login":
		return model.FieldTypeUsername
	case "url", "website", "endpoint":
		return model.FieldTypeURL
	case "email":
		return model.FieldTypeEmail
	case "totp", "totp_secret", "otp":
		return model.FieldTypeTOTPSecret
	default:
		return model.FieldTypeText
	}
}

var getCmd = &cobra.Command{
	Use:   "get [title]",
	Short: "Show one credential",
	Long: `Show a credential by title (glob patterns match case-insensitively).
Sensitive values print masked unless --reveal or --field is used.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openSession()
		if err != nil {
			return err
		}
		defer m.Lock()

		rec, err := findByTitle(m, args[0])
		if err != nil {
			return err
		}

		if getFields {
			for _, name := range sortedFieldNames(rec) {
				marker := ""
				if rec.Fields[name].Sensitive {
					marker = " [sensitive]"
				}
				fmt.Printf("%s%s\n", name, marker)
			}
			return nil
		}

		if getField != "" {
			f, ok := rec.Field(getField)
			if !ok {
				return fmt.Errorf("field %q not found", getField)
			}
			// Bare value on stdout for script use.
			fmt.Println(f.Value)
			return nil
		}

		printRecord(rec, getReveal)
		return nil
	},
}

func printRecord(rec *model.CredentialRecord, reveal bool) {
	bold := color.New(color.Bold)
	bold.Println(rec.Title)
	fmt.Printf("  id:     %s\n", rec.ID)
	fmt.Printf("  type:   %s\n", rec.Type)
	if rec.FolderPath != "" {
		fmt.Printf("  folder: %s\n", rec.FolderPath)
	}
	if len(rec.Tags) > 0 {
		fmt.Printf("  tags:   %s\n", strings.Join(rec.Tags, ", "))
	}
	if rec.Favorite {
		fmt.Printf("  favorite: yes\n")
	}
	for _, name := range sortedFieldNames(rec) {
		f := rec.Fields[name]
		value := f.Value
		if f.Sensitive && !reveal {
			value = color.YellowString("[hidden, use --reveal]")
		}
		fmt.Printf("  %s: %s\n", name, value)
	}
	if rec.Notes != "" {
		fmt.Printf("  notes: %s\n", rec.Notes)
	}
}

func sortedFieldNames(rec *model.CredentialRecord) []string {
	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// findByTitle resolves a title or glob pattern to exactly one record.
func findByTitle(m *session.Manager, pattern string) (*model.CredentialRecord, error) {
	records, err := m.ListCredentials()
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(records))
	byTitle := make(map[string]*model.CredentialRecord, len(records))
	for _, rec := range records {
		titles = append(titles, rec.Title)
		byTitle[rec.Title] = rec
	}

	matches, err := cli.MatchTitles(pattern, titles)
	if err != nil {
		return nil, err
	}
	if len(matches) > 1 {
		// List iterates a map, so sort the matches for a stable message.
		return nil, fmt.Errorf("pattern %q matches %d credentials: %s",
			pattern, len(matches), strings.Join(cli.SortTitles(matches), ", "))
	}
	return byTitle[matches[0]], nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openSession()
		if err != nil {
			return err
		}
		defer m.Lock()

		q := repo.Query{Type: listType, Folder: listFolder}
		if listTag != "" {
			q.Tags = []string{listTag}
		}
		records, err := m.SearchCredentials(q)
		if err != nil {
			return err
		}
		printSummaries(records)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Search credentials by text and filters",
	Long: `Search titles, tags, notes, and non-sensitive field values.
Sensitive values never match; searching for a password will not find it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openSession()
		if err != nil {
			return err
		}
		defer m.Lock()

		q := repo.Query{
			Type:          searchType,
			Folder:        searchFolder,
			FavoritesOnly: searchFavorites,
		}
		if len(args) > 0 {
			q.Text = args[0]
		}
		if searchTags != "" {
			for _, tag := range strings.Split(searchTags, ",") {
				q.Tags = append(q.Tags, strings.TrimSpace(tag))
			}
		}

		records, err := m.SearchCredentials(q)
		if err != nil {
			return err
		}
		printSummaries(records)
		return nil
	},
}

func printSummaries(records []*model.CredentialRecord) {
	if len(records) == 0 {
		fmt.Println("No credentials found")
		return
	}
	sort.Slice(records, func(i, j int) bool {
		return strings.ToLower(records[i].Title) < strings.ToLower(records[j].Title)
	})
	for _, rec := range records {
		line := rec.Title
		if rec.Favorite {
			line = color.YellowString("★ ") + line
		}
		details := []string{rec.Type}
		if rec.FolderPath != "" {
			details = append(details, rec.FolderPath)
		}
		if len(rec.Tags) > 0 {
			details = append(details, strings.Join(rec.Tags, ","))
		}
		fmt.Printf("%s  (%s)\n", line, strings.Join(details, " | "))
	}
	fmt.Printf("\nTotal: %d\n", len(records))
}

var rmCmd = &cobra.Command{
	Use:   "rm [title]",
	Short: "Delete a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openSession()
		if err != nil {
			return err
		}

		rec, err := findByTitle(m, args[0])
		if err != nil {
			m.Lock()
			return err
		}

		if !rmForce {
			fmt.Printf("Delete %q? [y/N]: ", rec.Title)
			var response string
			if _, err := fmt.Scanln(&response); err != nil || (response != "y" && response != "Y") {
				fmt.Println("Aborted")
				m.Lock()
				return nil
			}
		}

		if err := m.DeleteCredential(rec.ID); err != nil {
			m.Lock()
			return err
		}
		if err := saveAndClose(m); err != nil {
			return err
		}

		fmt.Printf("%s Deleted %q\n", color.GreenString("✓"), rec.Title)
		return nil
	},
}
