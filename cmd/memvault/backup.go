package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/memvault/memvault/pkg/archive"
	"github.com/memvault/memvault/pkg/backup"
)

// Backup command flags.
var (
	backupDir   string
	backupKeep  int
	backupForce bool
)

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupPruneCmd)
	backupCmd.AddCommand(backupVerifyCmd)

	backupCmd.PersistentFlags().StringVar(&backupDir, "dir", "", "Backup directory (default: backup_dir from config)")
	backupPruneCmd.Flags().IntVar(&backupKeep, "keep", 5, "Number of snapshots to keep")
	restoreCmd.Flags().BoolVar(&backupForce, "force", false, "Skip confirmation prompt")
}

// resolveBackupDir applies the --dir override on top of the config.
func resolveBackupDir() string {
	if backupDir != "" {
		return backupDir
	}
	return cfg.BackupDir
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the encrypted archive",
	Long: `Copy the encrypted archive into the backup directory.

Snapshots are exact copies of the sealed container, named with a UTC
timestamp, each with a SHA-256 sidecar for corruption detection. No
passphrase is needed to take one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := resolveBackupDir()
		if dir == "" {
			return fmt.Errorf("no backup directory configured (set backup_dir in config or pass --dir)")
		}

		snap, err := backup.Snapshot(archive.NewDesktopProvider(), cfg.ArchivePath, dir)
		if err != nil {
			return err
		}
		fmt.Printf("%s Snapshot written to %s\n", color.GreenString("✓"), snap)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archive snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := backup.List(resolveBackupDir())
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("No snapshots found")
			return nil
		}
		for _, info := range infos {
			fmt.Printf("%s  %8d bytes  %s\n",
				info.CreatedAt.Format("2006-01-02 15:04:05"), info.Size, filepath.Base(info.Path))
		}
		fmt.Printf("\nTotal: %d snapshots\n", len(infos))
		return nil
	},
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old snapshots, keeping the most recent",
	RunE: func(cmd *cobra.Command, args []string) error {
		if backupKeep < 1 {
			return fmt.Errorf("--keep must be at least 1")
		}
		deleted, err := backup.Prune(resolveBackupDir(), backupKeep)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d snapshots\n", deleted)
		return nil
	},
}

var backupVerifyCmd = &cobra.Command{
	Use:   "verify <snapshot>",
	Short: "Check a snapshot against its checksum",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := backup.Verify(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s Snapshot checksum OK\n", color.GreenString("✓"))
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <snapshot>",
	Short: "Replace the archive with a snapshot",
	Long: `Restore the archive from a snapshot.

The snapshot is checksum-verified and decrypted with your passphrase
before the current archive is replaced, so a wrong passphrase or a
damaged snapshot changes nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snapPath := args[0]

		if !backupForce {
			fmt.Printf("This will replace %s with %s.\n", cfg.ArchivePath, snapPath)
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

		passphrase, err := promptPassphrase("Enter master passphrase: ")
		if err != nil {
			return err
		}

		stop := startSpinner("Validating snapshot...")
		err = backup.Restore(archive.NewDesktopProvider(), archive.NewContainerCodec(),
			snapPath, cfg.ArchivePath, passphrase)
		stop()
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "%s Archive restored from %s\n", color.GreenString("✓"), filepath.Base(snapPath))
		return nil
	},
}
