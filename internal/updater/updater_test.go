package updater

import (
	"context"
	"errors"
	"testing"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	found    bool
	err      error
	detected int
	slug     string
}

func (f *fakeDetector) DetectLatest(_ context.Context, repo selfupdate.Repository) (*selfupdate.Release, bool, error) {
	f.detected++
	owner, name, _ := repo.GetSlug()
	f.slug = owner + "/" + name
	return nil, f.found, f.err
}

func (f *fakeDetector) UpdateTo(context.Context, *selfupdate.Release, string) error {
	return errors.New("unexpected install")
}

func TestCheck_DevBuild(t *testing.T) {
	d := &fakeDetector{}
	u := NewWithDetector(d)
	for _, v := range []string{"", "dev", "  "} {
		_, err := u.Check(context.Background(), v)
		assert.ErrorIs(t, err, ErrDevBuild, "version %q", v)
	}
	assert.Zero(t, d.detected, "dev builds never reach the network")
}

func TestCheck_NotFound(t *testing.T) {
	d := &fakeDetector{}
	_, err := NewWithDetector(d).Check(context.Background(), "v0.2.0")
	assert.ErrorIs(t, err, ErrNoRelease)
	assert.Equal(t, Slug, d.slug)
}

func TestCheck_DetectError(t *testing.T) {
	boom := errors.New("rate limited")
	_, err := NewWithDetector(&fakeDetector{err: boom}).Check(context.Background(), "0.2.0")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "detecting latest release")
}

func TestInstall_RequiresNewerRelease(t *testing.T) {
	u := NewWithDetector(&fakeDetector{})
	err := u.Install(context.Background(), Result{Current: "0.2.0", Latest: "0.2.0"}, "/tmp/capstone")
	assert.Error(t, err)
}
