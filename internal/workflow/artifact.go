package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/harrison/foreman/internal/checksum"
	"github.com/harrison/foreman/internal/models"
)

// ArtifactKind names a registrable planning artifact.
type ArtifactKind string

const (
	ArtifactCapabilityMap ArtifactKind = "capability_map"
	ArtifactPhysicalMap   ArtifactKind = "physical_map"
)

// ParseArtifactKind validates an artifact kind string.
func ParseArtifactKind(raw string) (ArtifactKind, error) {
	switch ArtifactKind(raw) {
	case ArtifactCapabilityMap, ArtifactPhysicalMap:
		return ArtifactKind(raw), nil
	}
	return "", fmt.Errorf("unknown artifact kind %q: must be capability_map or physical_map", raw)
}

// capabilityMapDoc is the expected shape of the logical-design artifact.
type capabilityMapDoc struct {
	Domains []struct {
		Name         string   `json:"name"`
		Capabilities []string `json:"capabilities"`
	} `json:"domains"`
	PhaseExclusions map[string][]string `json:"phase_exclusions,omitempty"`
}

// physicalMapDoc is the expected shape of the physical-design artifact.
type physicalMapDoc struct {
	Components []struct {
		Name  string   `json:"name"`
		Files []string `json:"files"`
	} `json:"components"`
}

// RegisterArtifact reads, checksums, and schema-validates the artifact at
// path, then records the result on the state. A schema failure still
// registers the artifact, marked invalid with a path-qualified error; it is
// never silently accepted.
func RegisterArtifact(st *models.WorkflowState, kind ArtifactKind, path string) (*models.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}

	artifact := &models.Artifact{
		Path:        path,
		Checksum:    checksum.Sum(data),
		Valid:       true,
		ValidatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if verr := validateArtifact(kind, path, data); verr != nil {
		msg := verr.Error()
		artifact.Valid = false
		artifact.Error = &msg
	}

	switch kind {
	case ArtifactCapabilityMap:
		st.Artifacts.CapabilityMap = artifact
	case ArtifactPhysicalMap:
		st.Artifacts.PhysicalMap = artifact
	default:
		return nil, fmt.Errorf("unknown artifact kind %q", kind)
	}

	details := map[string]any{"path": path, "valid": artifact.Valid}
	if artifact.Error != nil {
		details["error"] = *artifact.Error
	}
	st.AddEvent("artifact_registered", "", details)
	return artifact, nil
}

func validateArtifact(kind ArtifactKind, path string, data []byte) error {
	switch kind {
	case ArtifactCapabilityMap:
		var doc capabilityMapDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("%s: not valid JSON: %v", path, err)
		}
		if len(doc.Domains) == 0 {
			return fmt.Errorf("%s: capability map must declare at least one domain", path)
		}
		for i, d := range doc.Domains {
			if d.Name == "" {
				return fmt.Errorf("%s: domains[%d]: name is required", path, i)
			}
			if len(d.Capabilities) == 0 {
				return fmt.Errorf("%s: domains[%d] (%s): capabilities must be non-empty", path, i, d.Name)
			}
		}
	case ArtifactPhysicalMap:
		var doc physicalMapDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("%s: not valid JSON: %v", path, err)
		}
		if len(doc.Components) == 0 {
			return fmt.Errorf("%s: physical map must declare at least one component", path)
		}
		for i, c := range doc.Components {
			if c.Name == "" {
				return fmt.Errorf("%s: components[%d]: name is required", path, i)
			}
			if len(c.Files) == 0 {
				return fmt.Errorf("%s: components[%d] (%s): files must be non-empty", path, i, c.Name)
			}
		}
	}
	return nil
}

// PhaseExclusions extracts the per-phase keyword exclusion lists from a
// registered, valid capability map. Returns nil when unavailable; the phase
// leakage gate falls back to its built-in defaults.
func PhaseExclusions(st *models.WorkflowState) map[string][]string {
	cm := st.Artifacts.CapabilityMap
	if cm == nil || !cm.Valid {
		return nil
	}
	data, err := os.ReadFile(cm.Path)
	if err != nil {
		return nil
	}
	var doc capabilityMapDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}
	return doc.PhaseExclusions
}

// RecordSpecReview registers the spec weakness review summary.
func RecordSpecReview(st *models.WorkflowState, total, criticalOpen int) error {
	if total < 0 || criticalOpen < 0 {
		return fmt.Errorf("review counts must be >= 0")
	}
	if criticalOpen > total {
		return fmt.Errorf("critical_open (%d) cannot exceed total (%d)", criticalOpen, total)
	}
	st.Artifacts.SpecReview = &models.SpecReview{
		Total:        total,
		CriticalOpen: criticalOpen,
		ReviewedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	st.AddEvent("spec_review_recorded", "", map[string]any{
		"total":         total,
		"critical_open": criticalOpen,
	})
	return nil
}

// RecordPlanValidation registers the external task-plan verifier's verdict.
func RecordPlanValidation(st *models.WorkflowState, verdict models.PlanVerdict, summary string, issues []string) {
	st.Artifacts.TaskValidation = &models.TaskValidation{
		Verdict:     verdict,
		Valid:       verdict.Passing(),
		Summary:     summary,
		Issues:      issues,
		ValidatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	st.AddEvent("plan_validated", "", map[string]any{"verdict": string(verdict)})
}
