package storage

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

const (
	exportsPrefix   = "exports"
	exportKeyLayout = "20060102T150405Z"
)

// ErrInvalidArchiveName is returned for archive names that ExportKey could not have produced.
var ErrInvalidArchiveName = errors.New("invalid archive name")

// ExportKey is the object key of a rankings export taken at ts.
func ExportKey(projectID string, ts time.Time) string {
	return fmt.Sprintf("%s/%s/%s.json", exportsPrefix, projectID, ts.UTC().Format(exportKeyLayout))
}

// ArchiveName is the last segment of an export key, e.g. "20260504T100201Z.json".
func ArchiveName(key string) string {
	return path.Base(key)
}

// ExportKeyForName rebuilds the export key of projectID from an archive name.
func ExportKeyForName(projectID, name string) (string, error) {
	stamp, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidArchiveName, name)
	}
	ts, err := time.Parse(exportKeyLayout, stamp)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidArchiveName, name)
	}
	return ExportKey(projectID, ts), nil
}
