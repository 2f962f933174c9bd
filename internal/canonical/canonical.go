// Package canonical derives stable identities for Decisions. The
// comparison view excludes the informational timestamp, NFC-normalizes
// every string, and is serialized as RFC 8785 canonical JSON before
// hashing, so two equal-by-value Decisions always hash identically
// regardless of field ordering or Unicode representation.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"

	"github.com/netgrid-io/plangate/pkg/types"
)

// Fingerprint returns the sha256-prefixed digest of a Decision's
// comparison view. It is the identity used for plan/apply tamper checks.
func Fingerprint(d types.Decision) (string, error) {
	raw, err := json.Marshal(comparisonView(d))
	if err != nil {
		return "", fmt.Errorf("marshal comparison view: %w", err)
	}
	transformed, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize comparison view: %w", err)
	}
	return DigestWithPrefix(transformed), nil
}

// Equal reports whether two Decisions match with timestamps excluded.
func Equal(a, b types.Decision) (bool, error) {
	fa, err := Fingerprint(a)
	if err != nil {
		return false, err
	}
	fb, err := Fingerprint(b)
	if err != nil {
		return false, err
	}
	return fa == fb, nil
}

// DigestJSON canonicalizes a raw JSON document before hashing so
// semantically identical documents share one digest.
func DigestJSON(raw []byte) (string, error) {
	transformed, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize document: %w", err)
	}
	return DigestWithPrefix(transformed), nil
}

// DigestWithPrefix hashes raw bytes into the sha256:<hex> form used for
// stored identifiers.
func DigestWithPrefix(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func comparisonView(d types.Decision) map[string]any {
	results := make([]any, 0, len(d.PolicyResults))
	for _, r := range d.PolicyResults {
		results = append(results, map[string]any{
			"policy_name": nfc(r.PolicyName),
			"passed":      r.Passed,
			"required":    r.Required,
			"message":     nfc(r.Message),
		})
	}

	violations := make([]any, 0, len(d.Violations))
	for _, v := range d.Violations {
		violations = append(violations, map[string]any{
			"type":     nfc(v.Type),
			"severity": nfc(string(v.Severity)),
			"message":  nfc(v.Message),
			"resource": nfc(v.Resource),
		})
	}

	return map[string]any{
		"schema":             nfc(d.Schema),
		"outcome":            nfc(string(d.Outcome)),
		"allowed":            d.Allowed,
		"approval_required":  d.ApprovalRequired,
		"reason":             nfc(d.Reason),
		"policies_evaluated": nfcSlice(d.PoliciesEvaluated),
		"policy_results":     results,
		"resource_summary": map[string]any{
			"total":     d.ResourceSummary.Total,
			"to_create": d.ResourceSummary.ToCreate,
			"to_update": d.ResourceSummary.ToUpdate,
			"to_delete": d.ResourceSummary.ToDelete,
		},
		"context": map[string]any{
			"artifact_path":        nfc(d.Context.ArtifactPath),
			"site":                 nfc(d.Context.Site),
			"render_run_id":        nfc(d.Context.RenderRunID),
			"attestation_verified": d.Context.AttestationVerified,
			"pr_number":            nfc(d.Context.PRNumber),
			"approver":             nfc(d.Context.Approver),
			"approved_at":          nfc(d.Context.ApprovedAt),
			"deletion_approved":    d.Context.DeletionApproved,
		},
		"violations": violations,
		"next_steps": nfcSlice(d.NextSteps),
	}
}

func nfc(s string) string {
	return norm.NFC.String(s)
}

func nfcSlice(in []string) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		out = append(out, nfc(s))
	}
	return out
}
