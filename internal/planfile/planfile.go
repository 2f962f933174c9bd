// Package planfile decodes the normalized input documents: the plan
// produced by the infrastructure-planning tool and the metadata assembled
// from the attestation and review collaborators. Faults never escape as
// errors; they are returned as input_error violations so the engine can
// turn them into an in-band deny.
package planfile

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/netgrid-io/plangate/pkg/types"
)

// Document is the combined envelope submitted to the gateway API.
type Document struct {
	Plan     json.RawMessage `json:"plan"`
	Metadata json.RawMessage `json:"metadata"`
}

type wirePlan struct {
	Plan struct {
		ResourceChanges []wireChange `json:"resourceChanges"`
	} `json:"plan"`
}

type wireChange struct {
	Address string `json:"address"`
	Type    string `json:"type"`
	Change  struct {
		Actions []string `json:"actions"`
	} `json:"change"`
}

type wireMetadata struct {
	Artifact struct {
		Path string `json:"path"`
		Site string `json:"site"`
	} `json:"artifact"`
	Provenance struct {
		RenderRunID         string     `json:"renderRunId"`
		AttestationVerified bool       `json:"attestationVerified"`
		PRNumber            flexString `json:"prNumber"`
		Approver            string     `json:"approver"`
		ApprovedAt          string     `json:"approvedAt"`
	} `json:"provenance"`
	DeletionApproved bool `json:"deletionApproved"`
}

// flexString accepts both "17" and 17 on the wire; review systems emit
// PR numbers either way.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// ParseDocument decodes and validates a combined plan+metadata envelope.
// The returned violations, when non-empty, enumerate every input fault.
func ParseDocument(data []byte) (types.ChangeSet, types.ProvenanceContext, []types.Violation) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, types.ProvenanceContext{}, []types.Violation{inputViolation("document is not valid JSON: " + err.Error())}
	}

	var violations []types.Violation
	if doc.Plan == nil {
		violations = append(violations, inputViolation("document is missing the plan section"))
	}
	if doc.Metadata == nil {
		violations = append(violations, inputViolation("document is missing the metadata section"))
	}
	if len(violations) > 0 {
		return nil, types.ProvenanceContext{}, violations
	}

	planEnvelope, err := json.Marshal(map[string]json.RawMessage{"plan": doc.Plan})
	if err != nil {
		return nil, types.ProvenanceContext{}, []types.Violation{inputViolation("document is not valid JSON: " + err.Error())}
	}

	changes, planViolations := ParsePlan(planEnvelope)
	pctx, metaViolations := ParseMetadata(doc.Metadata)
	violations = append(planViolations, metaViolations...)
	if len(violations) > 0 {
		return nil, pctx, violations
	}
	return changes, pctx, nil
}

// ParsePlan decodes a {"plan": {"resourceChanges": [...]}} document.
func ParsePlan(data []byte) (types.ChangeSet, []types.Violation) {
	if violations := validate(planSchema, "plan", data); len(violations) > 0 {
		return nil, violations
	}

	var wire wirePlan
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, []types.Violation{inputViolation("plan document is not valid JSON: " + err.Error())}
	}

	changes := make(types.ChangeSet, 0, len(wire.Plan.ResourceChanges))
	for _, c := range wire.Plan.ResourceChanges {
		actions := make([]types.Action, 0, len(c.Change.Actions))
		for _, a := range c.Change.Actions {
			actions = append(actions, types.Action(a))
		}
		changes = append(changes, types.ResourceChange{
			Address: c.Address,
			Type:    c.Type,
			Actions: actions,
		})
	}
	return changes, nil
}

// ParseMetadata decodes an {artifact, provenance, deletionApproved}
// document into a ProvenanceContext.
func ParseMetadata(data []byte) (types.ProvenanceContext, []types.Violation) {
	if violations := validate(metadataSchema, "metadata", data); len(violations) > 0 {
		return types.ProvenanceContext{}, violations
	}

	var wire wireMetadata
	if err := json.Unmarshal(data, &wire); err != nil {
		return types.ProvenanceContext{}, []types.Violation{inputViolation("metadata document is not valid JSON: " + err.Error())}
	}

	return types.ProvenanceContext{
		ArtifactPath:        wire.Artifact.Path,
		Site:                wire.Artifact.Site,
		RenderRunID:         wire.Provenance.RenderRunID,
		AttestationVerified: wire.Provenance.AttestationVerified,
		PRNumber:            string(wire.Provenance.PRNumber),
		Approver:            wire.Provenance.Approver,
		ApprovedAt:          wire.Provenance.ApprovedAt,
		DeletionApproved:    wire.DeletionApproved,
	}, nil
}

// LoadFiles reads and decodes the two CLI inputs. Unreadable files are
// input violations like any other malformed input.
func LoadFiles(planPath, metadataPath string) (types.ChangeSet, types.ProvenanceContext, []types.Violation) {
	var violations []types.Violation

	// #nosec G304 -- paths are operator-provided CLI arguments.
	planData, err := os.ReadFile(planPath)
	if err != nil {
		violations = append(violations, inputViolation("cannot read plan document: "+err.Error()))
	}
	// #nosec G304 -- paths are operator-provided CLI arguments.
	metaData, err := os.ReadFile(metadataPath)
	if err != nil {
		violations = append(violations, inputViolation("cannot read metadata document: "+err.Error()))
	}
	if len(violations) > 0 {
		return nil, types.ProvenanceContext{}, violations
	}

	changes, planViolations := ParsePlan(planData)
	pctx, metaViolations := ParseMetadata(metaData)
	violations = append(planViolations, metaViolations...)
	if len(violations) > 0 {
		return nil, pctx, violations
	}
	return changes, pctx, nil
}

func validate(schema *jsonschema.Schema, label string, data []byte) []types.Violation {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return []types.Violation{inputViolation(label + " document is not valid JSON: " + err.Error())}
	}

	err := schema.Validate(decoded)
	if err == nil {
		return nil
	}

	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []types.Violation{inputViolation(label + " document failed validation: " + err.Error())}
	}

	var violations []types.Violation
	for _, leaf := range leafCauses(ve) {
		loc := leaf.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		violations = append(violations, inputViolation(fmt.Sprintf("%s document invalid at %s: %s", label, loc, leaf.Message)))
	}
	return violations
}

// leafCauses flattens a validation error tree so every concrete fault is
// reported at once.
func leafCauses(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var leaves []*jsonschema.ValidationError
	for _, cause := range ve.Causes {
		leaves = append(leaves, leafCauses(cause)...)
	}
	return leaves
}

func inputViolation(msg string) types.Violation {
	return types.Violation{
		Type:     types.ViolationInputError,
		Severity: types.SeverityHigh,
		Message:  msg,
	}
}
