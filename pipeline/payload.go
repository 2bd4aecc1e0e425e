package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingFields is returned when a payload omits required release fields.
var ErrMissingFields = errors.New("release event missing required fields")

// ReleaseEvent is the strictly validated shape of an inbound release-event
// payload. Payloads missing required fields are rejected at the boundary.
type ReleaseEvent struct {
	Action     string      `json:"action"`
	Release    *Release    `json:"release"`
	Repository *Repository `json:"repository"`
}

type Release struct {
	ID         int64  `json:"id"`
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Body       string `json:"body"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
	TarballURL string `json:"tarball_url"`
}

type Repository struct {
	ID            int64  `json:"id"`
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
}

// ParseReleaseEvent decodes and validates a release-event body.
func ParseReleaseEvent(body []byte) (*ReleaseEvent, error) {
	event := &ReleaseEvent{}
	if err := json.Unmarshal(body, event); err != nil {
		return nil, fmt.Errorf("decode release event: %w", err)
	}

	if err := event.validate(); err != nil {
		return nil, err
	}

	return event, nil
}

func (e *ReleaseEvent) validate() error {
	var missing []string

	if e.Action == "" {
		missing = append(missing, "action")
	}
	switch {
	case e.Release == nil:
		missing = append(missing, "release")
	default:
		if e.Release.ID == 0 {
			missing = append(missing, "release.id")
		}
		if e.Release.TagName == "" {
			missing = append(missing, "release.tag_name")
		}
	}
	switch {
	case e.Repository == nil:
		missing = append(missing, "repository")
	default:
		if e.Repository.ID == 0 {
			missing = append(missing, "repository.id")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf(
			"%w: %s",
			ErrMissingFields,
			strings.Join(missing, ", "),
		)
	}

	return nil
}
