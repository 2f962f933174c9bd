package types

// ProvenanceContext describes where a rendered artifact came from and who
// authorized it. It is assembled entirely from external collaborators
// (attestation verifier, review system, render pipeline) and is immutable
// once constructed.
type ProvenanceContext struct {
	ArtifactPath        string `json:"artifact_path"`
	Site                string `json:"site"`
	RenderRunID         string `json:"render_run_id"`
	AttestationVerified bool   `json:"attestation_verified"`
	PRNumber            string `json:"pr_number"`
	Approver            string `json:"approver"`
	ApprovedAt          string `json:"approved_at,omitempty"`
	DeletionApproved    bool   `json:"deletion_approved"`
}
