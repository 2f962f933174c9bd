package planfile

import "github.com/santhosh-tekuri/jsonschema/v5"

// Schemas are deliberately lenient about provenance contents: a missing
// renderRunId or approver is a policy concern surfaced by the
// provenance_validation and pr_approval_check rules, not an input error.

const planSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["plan"],
  "properties": {
    "plan": {
      "type": "object",
      "required": ["resourceChanges"],
      "properties": {
        "resourceChanges": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["address", "change"],
            "properties": {
              "address": {"type": "string", "minLength": 1},
              "type": {"type": "string"},
              "change": {
                "type": "object",
                "required": ["actions"],
                "properties": {
                  "actions": {
                    "type": "array",
                    "items": {"enum": ["create", "update", "delete", "replace", "no-op"]}
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

const metadataSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["artifact", "provenance"],
  "properties": {
    "artifact": {
      "type": "object",
      "required": ["site"],
      "properties": {
        "path": {"type": "string"},
        "site": {"type": "string", "minLength": 1}
      }
    },
    "provenance": {
      "type": "object",
      "properties": {
        "renderRunId": {"type": "string"},
        "attestationVerified": {"type": "boolean"},
        "prNumber": {"type": ["string", "number"]},
        "approver": {"type": "string"},
        "approvedAt": {"type": "string"}
      }
    },
    "deletionApproved": {"type": "boolean"}
  }
}`

var (
	planSchema     = jsonschema.MustCompileString("plan.schema.json", planSchemaJSON)
	metadataSchema = jsonschema.MustCompileString("metadata.schema.json", metadataSchemaJSON)
)
