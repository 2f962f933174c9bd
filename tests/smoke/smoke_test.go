package smoke

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/netgrid-io/plangate/internal/api"
	"github.com/netgrid-io/plangate/internal/auth"
	"github.com/netgrid-io/plangate/internal/config"
	"github.com/netgrid-io/plangate/internal/engine"
	"github.com/netgrid-io/plangate/internal/gateway"
	"github.com/netgrid-io/plangate/pkg/types"
)

const document = `{
  "plan": {"resourceChanges": [
    {"address": "dns_record.a", "type": "dns_record", "change": {"actions": ["create"]}}
  ]},
  "metadata": {
    "artifact": {"path": "artifacts/site-a/plan.json", "site": "site-a"},
    "provenance": {
      "renderRunId": "render-4711",
      "attestationVerified": true,
      "prNumber": "1",
      "approver": "alice"
    },
    "deletionApproved": false
  }
}`

func TestSmoke(t *testing.T) {
	t.Setenv("PLANGATE_DEV_TOKEN", "test-token")

	service := gateway.NewService(
		engine.New(engine.DefaultRules()),
		gateway.NewInMemoryStore(16),
		config.Default().Environments,
	)
	router := api.NewRouter(&api.Handler{
		Auth:    auth.NewAuthenticatorFromEnv(),
		Service: service,
	})

	srv := httptest.NewServer(router)
	defer srv.Close()

	// auth gate sanity check
	res, err := http.Get(srv.URL + "/v1/decisions/anything")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.StatusCode)
	}

	// evaluate
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/evaluate", bytes.NewReader([]byte(document)))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Authorization", "Bearer test-token")
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}

	var eval gateway.EvaluateResult
	if err := json.NewDecoder(res.Body).Decode(&eval); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if eval.Decision.Outcome != types.OutcomeAutoApprove {
		t.Fatalf("expected auto_approve, got %s (%s)", eval.Decision.Outcome, eval.Decision.Reason)
	}

	// apply with identical inputs
	req, err = http.NewRequest(http.MethodPost, srv.URL+"/v1/apply/"+eval.ProposalID, bytes.NewReader([]byte(document)))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Authorization", "Bearer test-token")
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}

	var applied gateway.ApplyResult
	if err := json.NewDecoder(res.Body).Decode(&applied); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if applied.State != gateway.StateApplied {
		t.Fatalf("expected applied, got %s", applied.State)
	}
}
