package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildArchivePath returns the object key for an archived traversal
// result, partitioned by day so bucket listings stay manageable.
func BuildArchivePath(traversalID string, completedAt time.Time) (string, error) {
	if err := validatePathComponent(traversalID, "traversal id"); err != nil {
		return "", err
	}
	ts := completedAt.UTC()
	return path.Join(
		"traversals",
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		traversalID+".parquet",
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
