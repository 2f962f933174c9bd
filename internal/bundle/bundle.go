// Package bundle assembles a reviewable evidence archive for one
// evaluation: the structured Decision, its narrative, and the exact input
// documents it was derived from.
package bundle

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/netgrid-io/plangate/internal/explain"
	"github.com/netgrid-io/plangate/pkg/types"
)

type Input struct {
	Decision types.Decision
	Plan     []byte
	Metadata []byte
}

// BuildZip produces the archive bytes. Entries are written in a fixed
// order so identical inputs yield identical archives.
func BuildZip(in Input) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	decisionJSON, err := json.MarshalIndent(in.Decision, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal decision: %w", err)
	}

	entries := []struct {
		name string
		body []byte
	}{
		{"decision.json", append(decisionJSON, '\n')},
		{"decision.txt", []byte(explain.Render(in.Decision))},
		{"inputs/plan.json", in.Plan},
		{"inputs/metadata.json", in.Metadata},
	}

	for _, entry := range entries {
		if entry.body == nil {
			continue
		}
		w, err := zw.Create(entry.name)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", entry.name, err)
		}
		if _, err := w.Write(entry.body); err != nil {
			return nil, fmt.Errorf("write %s: %w", entry.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}
