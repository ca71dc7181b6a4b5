package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/launchdeck/launchdeck/internal/app/workspace"
	"github.com/launchdeck/launchdeck/internal/cli/ui"
	"github.com/launchdeck/launchdeck/internal/infrastructure/scanner"
)

var classifyOutput string

var classifyCmd = &cobra.Command{
	Use:   "classify <metadata-file|repo>",
	Short: "Decide which deployment target fits a project",
	Long: `Classify a project and print the chosen deployment target with the
reason and any warnings.

The argument is either a metadata file produced by a project analysis
(YAML or JSON) or a repository handed to the configured scanner.

Examples:
  launchdeck classify ./launchdeck.scan.yaml
  launchdeck classify https://github.com/acme/api --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().StringVarP(&classifyOutput, "output", "o", "table", "output format (table, json, yaml)")
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var result *workspace.ScanResult
	if info, statErr := os.Stat(args[0]); statErr == nil && info.Mode().IsRegular() {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read metadata: %w", err)
		}
		m, err := scanner.Decode(data)
		if err != nil {
			return err
		}
		result = a.workspace.Classify(m)
	} else {
		m, err := a.scanner.Scan(ctx, args[0])
		if err != nil {
			return err
		}
		result = a.workspace.Classify(m)
	}

	return writeScanResult(cmd.OutOrStdout(), result, classifyOutput)
}

func writeScanResult(w io.Writer, r *workspace.ScanResult, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(r)
	case "table", "":
		fmt.Fprint(w, renderScanResult(r))
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderScanResult(r *workspace.ScanResult) string {
	t := ui.NewTable("FIELD", "VALUE")
	t.AddRow("verdict", string(r.Verdict))
	if r.Decision != nil {
		t.AddRow("target", string(r.Decision.Target))
		if r.Decision.Rule != "" {
			t.AddRow("rule", string(r.Decision.Rule))
		}
		t.AddRow("reason", r.Decision.Reason)
		for _, w := range r.Decision.Warnings {
			t.AddRow("warning", w)
		}
	} else {
		t.AddRow("reason", r.Message)
	}
	return t.RenderSimple()
}
