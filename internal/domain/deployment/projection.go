package deployment

import (
	"encoding/json"
	"fmt"
)

// excludedFields are never part of a draft merge patch. The record ID is the
// patch key, not content, and status is written only by the deployment
// lifecycle so that a draft edit cannot overwrite it.
var excludedFields = []string{"id", "status"}

// Projection is the persistable view of a Config, ready to be sent as a
// merge patch.
type Projection map[string]any

// Project returns the persistable projection of c. UI-only state is
// excluded by construction.
func Project(c *Config) (Projection, error) {
	if c == nil {
		return Projection{}, nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	var p Projection
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode config projection: %w", err)
	}
	for _, f := range excludedFields {
		delete(p, f)
	}
	return p, nil
}

// Serialize returns the canonical serialization of the projection. Map keys
// are emitted in sorted order so equal projections serialize identically.
func (p Projection) Serialize() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to serialize projection: %w", err)
	}
	return string(raw), nil
}

// Changed reports whether the persistable projection of draft differs from
// the snapshot. It returns the projection and its serialization so callers
// can emit and record them without recomputing.
func Changed(draft *Config, snapshot string) (Projection, string, bool, error) {
	p, err := Project(draft)
	if err != nil {
		return nil, "", false, err
	}
	s, err := p.Serialize()
	if err != nil {
		return nil, "", false, err
	}
	return p, s, s != snapshot, nil
}

// CompletionPatch returns the record fields a finished deployment writes.
// A failed deployment writes nothing and returns nil: the record keeps
// describing the last good deployment.
func CompletionPatch(done Completion) map[string]any {
	if !done.Success {
		return nil
	}
	patch := map[string]any{
		"status": string(StatusRunning),
	}
	if done.DeployURL != "" {
		patch["deployUrl"] = done.DeployURL
	}
	if done.DeploymentTarget != "" {
		patch["deploymentTarget"] = string(done.DeploymentTarget)
	}
	if !done.Provider.IsEmpty() {
		raw, err := json.Marshal(done.Provider)
		if err == nil {
			var provider map[string]any
			if json.Unmarshal(raw, &provider) == nil {
				patch["provider"] = provider
			}
		}
	}
	return patch
}
