package config

import (
	"fmt"

	"github.com/mitchellh/go-homedir"
)

const (
	pathsSection = "paths"

	// StagingDefault is the default root of staging areas.
	StagingDefault = "~/.argo/staging"
)

// Paths groups directories from the "paths" section. Leading "~" is
// expanded to the home directory of the user.
type Paths struct {
	// Staging is the root of editing session areas scanned for recoverable
	// autosaves.
	Staging string
	// Backups is a directory of pre-migration backups. Empty means next to
	// the migrated file.
	Backups string
}

// PathsSection reads the "paths" section.
func PathsSection(c *Config) (Paths, error) {
	var (
		res Paths
		err error
	)

	res.Staging = StringSafe(c, pathsSection+".staging")
	if res.Staging == "" {
		res.Staging = StagingDefault
	}
	if res.Staging, err = homedir.Expand(res.Staging); err != nil {
		return Paths{}, fmt.Errorf("paths.staging: %w", err)
	}

	if res.Backups = StringSafe(c, pathsSection+".backups"); res.Backups != "" {
		if res.Backups, err = homedir.Expand(res.Backups); err != nil {
			return Paths{}, fmt.Errorf("paths.backups: %w", err)
		}
	}
	return res, nil
}

// MetricsTextfile returns the "metrics.textfile" path metrics are written to
// when a command finishes. Empty means metrics are not written.
func MetricsTextfile(c *Config) (string, error) {
	p := StringSafe(c, "metrics.textfile")
	if p == "" {
		return "", nil
	}
	return homedir.Expand(p)
}
