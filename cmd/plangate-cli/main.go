package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/netgrid-io/plangate/internal/bundle"
	"github.com/netgrid-io/plangate/internal/engine"
	"github.com/netgrid-io/plangate/internal/explain"
	"github.com/netgrid-io/plangate/internal/planfile"
	"github.com/netgrid-io/plangate/pkg/types"
)

// Exit codes mirror the outcome so CI callers can branch on status alone.
// Usage and artifact-write faults use a separate code to stay
// distinguishable from require_approval.
const (
	exitAutoApprove     = 0
	exitDeny            = 1
	exitRequireApproval = 2
	exitUsage           = 3
)

func main() {
	exitFn(run(os.Args, os.Stdout, os.Stderr))
}

var exitFn = os.Exit

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return exitUsage
	}

	switch args[1] {
	case "evaluate":
		return handleEvaluate(args[2:], stdout, stderr)
	default:
		usage(stderr)
		return exitUsage
	}
}

func handleEvaluate(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	planPath := fs.String("plan", "", "path to the normalized plan document")
	metadataPath := fs.String("metadata", "", "path to the provenance metadata document")
	format := fs.String("format", "json", "output format: json or text")
	outDir := fs.String("out", "", "directory to write decision artifacts into")
	bundlePath := fs.String("bundle", "", "path to write an evidence archive (zip) to")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if *planPath == "" || *metadataPath == "" {
		fmt.Fprintln(stderr, "evaluate requires --plan and --metadata")
		fs.Usage()
		return exitUsage
	}
	if *format != "json" && *format != "text" {
		fmt.Fprintf(stderr, "unknown format %q, want json or text\n", *format)
		return exitUsage
	}

	eng := engine.New(engine.DefaultRules())

	var decision types.Decision
	changes, pctx, violations := planfile.LoadFiles(*planPath, *metadataPath)
	if len(violations) > 0 {
		decision = eng.InputFailure(pctx, violations)
	} else {
		decision = eng.Evaluate(changes, pctx)
	}

	narrative := explain.Render(decision)

	switch *format {
	case "text":
		fmt.Fprint(stdout, narrative)
	default:
		enc := json.NewEncoder(stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		_ = enc.Encode(decision)
	}

	if *outDir != "" {
		if err := writeArtifacts(*outDir, decision, narrative); err != nil {
			fmt.Fprintln(stderr, "write artifacts:", err)
			return exitUsage
		}
	}

	if *bundlePath != "" {
		if err := writeBundle(*bundlePath, *planPath, *metadataPath, decision); err != nil {
			fmt.Fprintln(stderr, "write bundle:", err)
			return exitUsage
		}
	}

	return exitCode(decision.Outcome)
}

// writeArtifacts persists the structured document and its sibling
// narrative next to each other.
func writeArtifacts(dir string, decision types.Decision, narrative string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	body, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "decision.json"), append(body, '\n'), 0o600); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "decision.txt"), []byte(narrative), 0o600)
}

// writeBundle archives the decision with the input documents it was
// derived from. Unreadable inputs are skipped; the decision already
// records why they were rejected.
func writeBundle(path, planPath, metadataPath string, decision types.Decision) error {
	in := bundle.Input{Decision: decision}
	// #nosec G304 -- paths are operator-provided CLI arguments.
	if data, err := os.ReadFile(planPath); err == nil {
		in.Plan = data
	}
	// #nosec G304 -- paths are operator-provided CLI arguments.
	if data, err := os.ReadFile(metadataPath); err == nil {
		in.Metadata = data
	}

	archive, err := bundle.BuildZip(in)
	if err != nil {
		return err
	}
	return os.WriteFile(path, archive, 0o600)
}

func exitCode(outcome types.Outcome) int {
	switch outcome {
	case types.OutcomeAutoApprove:
		return exitAutoApprove
	case types.OutcomeRequireApproval:
		return exitRequireApproval
	default:
		return exitDeny
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Plangate CLI")
	fmt.Fprintln(w, "usage:")
	fmt.Fprintln(w, "  plangate evaluate --plan <path> --metadata <path> [--format json|text] [--out dir] [--bundle path]")
	fmt.Fprintln(w, "exit codes: 0 auto_approve, 2 require_approval, 1 deny, 3 usage")
}
