// Package updater replaces the running capstone binary with the latest
// GitHub release.
package updater

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/creativeprojects/go-selfupdate"
)

// Slug is the GitHub repository releases are published to.
const Slug = "HendryAvila/capstone-tracker"

var (
	// ErrDevBuild is returned for builds without a release version.
	ErrDevBuild = errors.New("cannot update a development build")
	// ErrNoRelease is returned when the repository has no usable release.
	ErrNoRelease = errors.New("no release found for " + Slug)
)

// Detector is the part of *selfupdate.Updater the package uses.
type Detector interface {
	DetectLatest(ctx context.Context, repository selfupdate.Repository) (*selfupdate.Release, bool, error)
	UpdateTo(ctx context.Context, rel *selfupdate.Release, cmdPath string) error
}

// Result describes the latest release relative to the running version.
type Result struct {
	Current   string
	Latest    string
	URL       string
	Notes     string
	Available bool

	release *selfupdate.Release
}

// Updater checks for and installs releases.
type Updater struct {
	detector Detector
	slug     string
}

// New returns an Updater backed by the public GitHub API. Release
// checksums are validated against the checksums.txt asset.
func New() (*Updater, error) {
	up, err := selfupdate.NewUpdater(selfupdate.Config{
		Validator: &selfupdate.ChecksumValidator{UniqueFilename: "checksums.txt"},
	})
	if err != nil {
		return nil, fmt.Errorf("creating updater: %w", err)
	}
	return NewWithDetector(up), nil
}

// NewWithDetector returns an Updater using d.
func NewWithDetector(d Detector) *Updater {
	return &Updater{detector: d, slug: Slug}
}

func releaseVersion(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != "dev"
}

// Check looks up the latest release.
func (u *Updater) Check(ctx context.Context, current string) (Result, error) {
	if !releaseVersion(current) {
		return Result{}, ErrDevBuild
	}
	rel, found, err := u.detector.DetectLatest(ctx, selfupdate.ParseSlug(u.slug))
	if err != nil {
		return Result{}, fmt.Errorf("detecting latest release: %w", err)
	}
	if !found || rel == nil {
		return Result{}, ErrNoRelease
	}
	return Result{
		Current:   strings.TrimPrefix(current, "v"),
		Latest:    rel.Version(),
		URL:       rel.URL,
		Notes:     rel.ReleaseNotes,
		Available: rel.GreaterThan(current),
		release:   rel,
	}, nil
}

// Install replaces the binary at target with the release found by Check.
func (u *Updater) Install(ctx context.Context, res Result, target string) error {
	if !res.Available || res.release == nil {
		return fmt.Errorf("no newer release to install")
	}
	if err := u.detector.UpdateTo(ctx, res.release, target); err != nil {
		return fmt.Errorf("installing %s: %w", res.Latest, err)
	}
	return nil
}

// Executable returns the path of the running binary.
func Executable() (string, error) {
	return selfupdate.ExecutablePath()
}
