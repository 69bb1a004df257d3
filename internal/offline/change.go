// Package offline queues project changes made while the API is unreachable
// and replays them, in order, once connectivity returns.
package offline

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Change types.
const (
	ChangeTaskUpdate    = "task-update"
	ChangeFeatureUpdate = "feature-update"
	ChangeProjectUpdate = "project-update"
)

// FeatureTag marks a task as a feature.
const FeatureTag = "feature"

var changeTypes = []string{ChangeTaskUpdate, ChangeFeatureUpdate, ChangeProjectUpdate}

var (
	ErrUnknownChangeType = errors.New("unknown change type")
	ErrMissingID         = errors.New("change data has no id")
)

// Change is one pending edit.
type Change struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// Validate checks the type and that the change names its target.
func (c Change) Validate() error {
	if !slices.Contains(changeTypes, c.Type) {
		return fmt.Errorf("%w: %q", ErrUnknownChangeType, c.Type)
	}
	if c.targetID() == "" {
		return ErrMissingID
	}
	return nil
}

func (c Change) targetID() string {
	switch id := c.Data["id"].(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return ""
	}
}

// request returns the API path and body the change replays as.
func (c Change) request() (string, map[string]any) {
	body := make(map[string]any, len(c.Data))
	for k, v := range c.Data {
		if k != "id" {
			body[k] = v
		}
	}

	switch c.Type {
	case ChangeProjectUpdate:
		return "/api/projects/" + c.targetID(), body
	case ChangeFeatureUpdate:
		body["tags"] = withTag(body["tags"], FeatureTag)
		return "/api/tasks/" + c.targetID(), body
	default:
		return "/api/tasks/" + c.targetID(), body
	}
}

// withTag returns the tags value as a string slice that contains tag.
func withTag(raw any, tag string) []string {
	var tags []string
	switch v := raw.(type) {
	case []string:
		tags = append(tags, v...)
	case []any:
		for _, t := range v {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
	}
	if !slices.Contains(tags, tag) {
		tags = append(tags, tag)
	}
	return tags
}
