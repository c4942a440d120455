package probe

import (
	"fmt"
	"strings"
	"time"

	"github.com/hamed0406/tileping/internal/domain"
)

type outcome int

const (
	tileSuccess outcome = iota
	tileFailure
	tileSkipped // 404, counted nowhere
)

const notFoundNote = "Not found (might be expected)"

// classifyTile turns one fetch into a detail record. msg is the line added to the
// endpoint's error list on failure.
func classifyTile(c domain.Coord, url string, resp *Response, elapsed time.Duration, err error) (d domain.TileDetail, out outcome, msg string) {
	d = domain.TileDetail{Coordinates: c.String(), URL: url}
	if err != nil {
		if IsTimeout(err) {
			d.Error = "Timeout"
			return d, tileFailure, c.String() + ": Request timeout"
		}
		d.Error = err.Error()
		return d, tileFailure, fmt.Sprintf("%s: %v", c, err)
	}

	d.StatusCode = resp.StatusCode
	d.ResponseTime = elapsed.Seconds()
	d.ContentLength = len(resp.Body)
	if resp.URL != "" && resp.URL != url {
		d.RedirectedTo = resp.URL
	}

	ct := resp.ContentType()
	switch resp.StatusCode {
	case 200:
		if isImage(ct) || len(resp.Body) > 0 {
			d.ContentType = ct
			return d, tileSuccess, ""
		}
		d.Error = "Empty or invalid content: " + ct
		return d, tileFailure, fmt.Sprintf("%s: Empty or invalid content (content-type: %s)", c, ct)
	case 404:
		d.Note = notFoundNote
		return d, tileSkipped, ""
	default:
		d.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return d, tileFailure, fmt.Sprintf("%s: HTTP %d", c, resp.StatusCode)
	}
}

func isImage(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "image")
}

// EndpointStatus derives the endpoint verdict from its tile counters.
func EndpointStatus(successes, failures int) domain.Status {
	switch {
	case successes == 0:
		return domain.StatusFailed
	case failures == 0:
		return domain.StatusHealthy
	default:
		return domain.StatusPartial
	}
}
