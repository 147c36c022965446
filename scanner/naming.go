package scanner

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	VersionPrefix    = ".version-"
	SubprojectPrefix = ".subproject-"
	SidecarSuffix    = ".meta.yaml"
	CommentSuffix    = ".comment.txt"

	// TimestampLayout is yyyy-MM-dd'T'HH-mm-ss, safe in file names
	TimestampLayout = "2006-01-02T15-04-05"
	backupLayout    = "2006-01-02 150405"
)

var backupSuffix = regexp.MustCompile(`^(.*) \[(\d{4}-\d{2}-\d{2} \d{6})\]$`)

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, s, time.Local)
}

// HasReservedPrefix reports whether a file name marks a version or a subproject
// output. Such files are never versioned themselves.
func HasReservedPrefix(name string) bool {
	return strings.HasPrefix(name, VersionPrefix) || strings.HasPrefix(name, SubprojectPrefix)
}

// Stem is the file name without directory and extension.
func Stem(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SplitTimestampSuffix splits "<rest>-<timestamp>".
func SplitTimestampSuffix(stem string) (string, time.Time, bool) {
	suffixLength := len(TimestampLayout) + 1

	if len(stem) <= suffixLength || stem[len(stem)-suffixLength] != '-' {
		return stem, time.Time{}, false
	}

	t, err := ParseTimestamp(stem[len(stem)-suffixLength+1:])

	if err != nil {
		return stem, time.Time{}, false
	}

	return stem[:len(stem)-suffixLength], t, true
}

// VersionSourceStem returns the document stem a legacy root version belongs to,
// ".version-Song-2024-01-02T10-00-00.als" gives "Song".
func VersionSourceStem(name string) (string, bool) {
	stem := Stem(name)

	if !strings.HasPrefix(stem, VersionPrefix) {
		return "", false
	}

	rest, _, _ := SplitTimestampSuffix(strings.TrimPrefix(stem, VersionPrefix))

	return rest, rest != ""
}

// BackupSourceName returns the document a backup was taken of,
// "Song [2024-01-02 030405].als" gives "Song.als".
func BackupSourceName(name string) (string, time.Time, bool) {
	ext := filepath.Ext(name)
	matches := backupSuffix.FindStringSubmatch(strings.TrimSuffix(filepath.Base(name), ext))

	if matches == nil {
		return "", time.Time{}, false
	}

	t, err := time.ParseInLocation(backupLayout, matches[2], time.Local)

	if err != nil {
		return "", time.Time{}, false
	}

	return matches[1] + ext, t, true
}

// SubprojectFileName builds ".subproject-<Source>-<Track>-<timestamp><ext>".
func SubprojectFileName(sourceStem, trackName string, at time.Time, ext string) string {
	return SubprojectPrefix + sourceStem + "-" + sanitize(trackName) + "-" + FormatTimestamp(at) + ext
}

// SidecarPath is the provenance description next to a subproject output.
func SidecarPath(documentPath string) string {
	return strings.TrimSuffix(documentPath, filepath.Ext(documentPath)) + SidecarSuffix
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}

		return r
	}, name)
}
