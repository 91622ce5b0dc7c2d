//go:build windows

package mcp

import (
	"os"
)

// openPolicyFile opens the policy file on Windows. There is no O_NOFOLLOW;
// creating symlinks requires elevated privileges there, so the permission
// check carries the load.
func openPolicyFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPolicyNotFound
		}
		return nil, err
	}
	return f, nil
}

// checkFileOwnership is a no-op on Windows, which tracks ownership through
// ACLs rather than a uid.
func checkFileOwnership(_ os.FileInfo) error {
	return nil
}
