//go:build windows

package audit

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/windows"
)

// checkDiskSpace verifies sufficient free space for audit log writes.
func (l *Logger) checkDiskSpace() error {
	dir, err := windows.UTF16PtrFromString(filepath.Dir(l.path))
	if err != nil {
		return nil
	}
	var free, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(dir, &free, &total, &totalFree); err != nil {
		return nil
	}
	if free < MinDiskSpace {
		return fmt.Errorf("audit: insufficient disk space: %d bytes available, need %d",
			free, MinDiskSpace)
	}
	return nil
}
