package youtube

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoVideoID is returned when no 11-character video ID can be
// extracted from the input.
var ErrNoVideoID = errors.New("could not extract video ID")

var (
	videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	embedPattern   = regexp.MustCompile(`/(?:embed|v)/([A-Za-z0-9_-]{11})`)
	shortsPattern  = regexp.MustCompile(`/shorts/([A-Za-z0-9_-]{11})`)
)

// ExtractVideoID resolves a user-supplied video reference to its canonical
// 11-character ID. Supported forms: youtu.be short links, watch URLs with a
// v parameter, /embed/ and /v/ paths, /shorts/ paths and the bare ID itself.
func ExtractVideoID(locator string) (string, error) {
	locator = strings.TrimSpace(locator)

	if id, ok := idFromURL(locator); ok {
		return id, nil
	}

	// Maybe it's just the video ID
	if videoIDPattern.MatchString(locator) {
		return locator, nil
	}

	return "", ErrNoVideoID
}

func idFromURL(locator string) (string, bool) {
	parsed, err := url.Parse(locator)
	if err != nil {
		return "", false
	}

	// Short links carry the ID as the first path segment
	if strings.Contains(parsed.Host, "youtu.be") {
		id := strings.TrimPrefix(parsed.Path, "/")
		if i := strings.Index(id, "?"); i >= 0 {
			id = id[:i]
		}
		return id, videoIDPattern.MatchString(id)
	}

	if v := parsed.Query().Get("v"); v != "" {
		return v, videoIDPattern.MatchString(v)
	}

	if m := embedPattern.FindStringSubmatch(parsed.Path); m != nil {
		return m[1], true
	}

	if m := shortsPattern.FindStringSubmatch(parsed.Path); m != nil {
		return m[1], true
	}

	return "", false
}

// WatchURL builds the canonical watch page URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
