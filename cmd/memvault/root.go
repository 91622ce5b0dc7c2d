package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/memvault/memvault/pkg/audit"
	"github.com/memvault/memvault/pkg/session"
)

var (
	cfgFile     string
	archiveFlag string
	cfg         Config
)

var rootCmd = &cobra.Command{
	Use:   "memvault",
	Short: "memvault is an encrypted, portable credential store",
	Long: `memvault keeps credentials in a single encrypted archive file that
travels between machines. All operations decrypt into memory only.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(cfgFile)
		if err != nil {
			return err
		}
		if archiveFlag != "" {
			cfg.ArchivePath = archiveFlag
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path")
	rootCmd.PersistentFlags().StringVar(&archiveFlag, "archive", "", "Archive file path (overrides config)")
}

// newManager builds a session manager with the configured audit trail.
func newManager() *session.Manager {
	var opts []session.Option
	if cfg.AuditLog != "" {
		opts = append(opts, session.WithAudit(audit.NewLogger(cfg.AuditLog)))
	}
	return session.NewManager(opts...)
}

// openSession prompts for the passphrase and opens the configured archive.
// Non-fatal open warnings go to stderr.
func openSession() (*session.Manager, error) {
	passphrase, err := promptPassphrase("Enter master passphrase: ")
	if err != nil {
		return nil, err
	}

	m := newManager()
	stop := startSpinner("Decrypting archive...")
	err = m.Open(cfg.ArchivePath, passphrase)
	stop()
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	for _, w := range m.Warnings() {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	return m, nil
}

// saveAndClose persists changes and ends the session, reporting either step's
// failure.
func saveAndClose(m *session.Manager) error {
	stop := startSpinner("Encrypting archive...")
	err := m.Close(true)
	stop()
	if err != nil {
		return fmt.Errorf("save archive: %w", err)
	}
	return nil
}

// promptPassphrase reads a passphrase without echo when stdin is a terminal,
// falling back to line input for pipes.
func promptPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read passphrase: %w", err)
		}
		return string(raw), nil
	}
	return readLine()
}

// readLine reads one line from stdin, trimming the trailing newline.
func readLine() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read input: %w", err)
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// startSpinner shows progress during KDF-heavy operations. The returned func
// stops it. No-op when stderr is not a terminal.
func startSpinner(message string) func() {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + message
	_ = s.Color("cyan")
	s.Start()
	return s.Stop
}

// parseDuration parses durations like "30d", "12m", "1y", or anything
// time.ParseDuration accepts.
func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("duration too short: %s", s)
	}

	unit := s[len(s)-1]
	valueStr := s[:len(s)-1]

	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return 0, fmt.Errorf("invalid duration value: %s", valueStr)
	}

	switch unit {
	case 'h':
		return time.Duration(value) * time.Hour, nil
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(value) * 30 * 24 * time.Hour, nil
	case 'y':
		return time.Duration(value) * 365 * 24 * time.Hour, nil
	default:
		return time.ParseDuration(s)
	}
}
