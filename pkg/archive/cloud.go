package archive

import "strings"

// cloudPathMarkers are lowercase substrings that indicate a path lives inside
// a cloud-sync directory. Advisory locks do not stop a sync daemon from
// uploading a half-written file, so the manager surfaces a warning when an
// archive is opened from one of these locations.
var cloudPathMarkers = []string{
	// Desktop sync folders
	"/dropbox/",
	"/google drive/",
	"/googledrive/",
	"/onedrive/",
	"/icloud/",
	"/box sync/",
	"/nextcloud/",
	"/mobile documents/", // macOS iCloud Drive
	// Windows-style separators
	"\\dropbox\\",
	"\\google drive\\",
	"\\onedrive\\",
	"\\box\\",
	// Android app sandboxes
	"/android/data/com.google.android.apps.docs",
	"/android/data/com.dropbox.android",
	"/android/data/com.microsoft.skydrive",
	"/android/data/com.nextcloud.client",
}

// IsCloudPath reports whether the path appears to live in a cloud-synced
// directory. Heuristic only; a false negative just means no warning.
func IsCloudPath(path string) bool {
	lower := strings.ToLower(path)
	if strings.HasPrefix(lower, "content://") {
		return true
	}
	for _, marker := range cloudPathMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
