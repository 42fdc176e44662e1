package system

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver"
	boxd "github.com/lnbitsbox/boxd/pkg"
)

type githubRelease struct {
	TagName string `json:"tag_name"`
	Body    string `json:"body"`
	Assets  []struct {
		Name string `json:"name"`
	} `json:"assets"`
}

// ReleaseCheckError is returned when GitHub answers but not with a
// release.
type ReleaseCheckError struct {
	StatusCode int
}

func (e *ReleaseCheckError) Error() string {
	return fmt.Sprintf("failed to check for updates: github returned %d", e.StatusCode)
}

func (t SystemUpdater) Check(ctx context.Context) (boxd.UpdateCheck, error) {
	if t.devMode {
		return boxd.UpdateCheck{
			CurrentVersion:  "1.0.0",
			LatestVersion:   "1.1.0",
			UpdateAvailable: true,
			ReleaseNotes:    "DEV MODE: Mock update available.\n- Bug fixes\n- Performance improvements",
			ReleaseTag:      "v1.1.0",
		}, nil
	}

	current := t.CurrentVersion()

	var release githubRelease
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/vnd.github.v3+json").
		SetResult(&release).
		Get(t.config.ReleasesURL)
	if err != nil {
		return boxd.UpdateCheck{}, fmt.Errorf("failed to check for updates: %w", err)
	}
	if !resp.IsSuccess() {
		return boxd.UpdateCheck{}, &ReleaseCheckError{StatusCode: resp.StatusCode()}
	}

	hasManifest := false
	for _, a := range release.Assets {
		if a.Name == "manifest.json" {
			hasManifest = true
			break
		}
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	return boxd.UpdateCheck{
		CurrentVersion:  current,
		LatestVersion:   latest,
		UpdateAvailable: hasManifest && isNewer(latest, current),
		ReleaseNotes:    release.Body,
		ReleaseTag:      release.TagName,
	}, nil
}

// isNewer compares semantically when both sides parse and falls back to
// plain inequality otherwise (eg: a "dev" build).
func isNewer(latest, current string) bool {
	if latest == "" {
		return false
	}
	lv, err := semver.NewVersion(latest)
	if err != nil {
		return latest != current
	}
	cv, err := semver.NewVersion(current)
	if err != nil {
		return latest != current
	}
	return lv.GreaterThan(cv)
}
