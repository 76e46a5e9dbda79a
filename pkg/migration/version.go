package migration

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/argo-books/argo-core/pkg/util/fileerr"
	"golang.org/x/mod/semver"
)

// ParseVersion returns the schema version of a format version string like
// "3.1.0". Only the major component selects the schema: minor and patch
// revisions of one major are readable by each other.
func ParseVersion(formatVersion string) (uint32, error) {
	v := "v" + formatVersion
	if !IsCanonical(formatVersion) {
		return 0, fileerr.Newf(fileerr.KindCorruptFooter, "invalid format version %q", formatVersion)
	}

	major, err := strconv.ParseUint(strings.TrimPrefix(semver.Major(v), "v"), 10, 32)
	if err != nil {
		return 0, fileerr.Newf(fileerr.KindVersionIncompatible, "format version %q: %w", formatVersion, err)
	}
	return uint32(major), nil
}

// IsCanonical checks that v is a full semantic version without the leading
// "v" and build metadata, e.g. "3.0.0" or "3.1.0-rc.1".
func IsCanonical(v string) bool {
	return !strings.HasPrefix(v, "v") && semver.Canonical("v"+v) == "v"+v
}

// FormatVersion returns the format version string written for the schema.
func FormatVersion(schema uint32) string {
	return fmt.Sprintf("%d.0.0", schema)
}
