package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/launchdeck/launchdeck/internal/app/session"
	"github.com/launchdeck/launchdeck/internal/app/workspace"
	"github.com/launchdeck/launchdeck/internal/cli/ui"
	"github.com/launchdeck/launchdeck/internal/domain/deployment"
)

var (
	deployFile   string
	deployRepo   string
	deployRecord string
	deployWatch  bool
	deployYes    bool
	deployPlain  bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Submit a deployment to the worker",
	Long: `Submit the current deployment configuration to the worker.

The configuration is assembled from, in order: a stored record (--record),
a draft file (--file) and a repository scan (--repo). Scanned values only
fill fields the earlier sources left empty.

Examples:
  launchdeck deploy --repo https://github.com/acme/api --watch
  launchdeck deploy --file deploy.yaml --yes
  launchdeck deploy --record 2f6c... --watch --plain`,
	Args: cobra.NoArgs,
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().StringVarP(&deployFile, "file", "f", "", "deployment draft file (YAML or JSON)")
	deployCmd.Flags().StringVar(&deployRepo, "repo", "", "repository to scan and classify")
	deployCmd.Flags().StringVar(&deployRecord, "record", "", "load a stored deployment record")
	deployCmd.Flags().BoolVarP(&deployWatch, "watch", "w", false, "follow the pipeline until the deployment finishes")
	deployCmd.Flags().BoolVarP(&deployYes, "yes", "y", false, "do not ask for confirmation")
	deployCmd.Flags().BoolVar(&deployPlain, "plain", false, "print plain step updates instead of the interactive view")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if deployFile == "" && deployRepo == "" && deployRecord == "" {
		return errors.New("one of --file, --repo or --record is required")
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	ws := a.workspace

	if deployRecord != "" {
		if _, err := ws.Load(ctx, deployRecord); err != nil {
			return fmt.Errorf("failed to load record %s: %w", deployRecord, err)
		}
	}
	if deployFile != "" {
		draft, err := readDraftFile(deployFile)
		if err != nil {
			return err
		}
		ws.Replace(draft)
	}
	if deployRepo != "" {
		result, err := ws.Scan(ctx, deployRepo)
		if err != nil {
			return err
		}
		if result.Decision == nil {
			return fmt.Errorf("%w: %s", workspace.ErrNotDeployable, result.Message)
		}
	}

	draft := ws.Draft()
	if !IsQuiet() {
		printDraft(draft)
	}
	if !deployYes && isTerminal(os.Stdin) && !ui.PromptYesNo("Deploy now?", true) {
		ui.Warning("Deployment cancelled")
		return nil
	}

	s, err := a.connect(ctx)
	if err != nil {
		return err
	}
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		if err := s.Run(runCtx); err != nil {
			log.Warn("session ended", "error", err)
		}
	}()

	var updates chan session.Snapshot
	if deployWatch {
		updates = s.Subscribe()
		defer s.Unsubscribe(updates)
	}

	if err := ws.Submit(ctx); err != nil {
		return err
	}
	id := ws.Draft().ID
	if !deployWatch {
		ui.Success("Deployment submitted for record " + id)
		return nil
	}

	var final session.Snapshot
	if !deployPlain && isTerminal(os.Stdout) {
		final, err = watchInteractive(s.Snapshot(), updates)
	} else {
		final, err = watchPlain(ctx, cmd.OutOrStdout(), updates)
	}
	if err != nil {
		return err
	}
	return reportOutcome(ctx, a, final)
}

func watchInteractive(initial session.Snapshot, updates <-chan session.Snapshot) (session.Snapshot, error) {
	m, err := tea.NewProgram(ui.NewStepsModel(initial, updates)).Run()
	if err != nil {
		return initial, fmt.Errorf("failed to render steps: %w", err)
	}
	steps := m.(ui.StepsModel)
	if steps.Aborted() {
		return steps.Snapshot(), errors.New("stopped watching; the deployment continues on the worker")
	}
	return steps.Snapshot(), nil
}

// watchPlain prints every step status change until the session reaches a
// terminal status.
func watchPlain(ctx context.Context, w io.Writer, updates <-chan session.Snapshot) (session.Snapshot, error) {
	seen := map[string]session.StepStatus{}
	var last session.Snapshot
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case snap, ok := <-updates:
			if !ok {
				return last, session.ErrClosed
			}
			last = snap
			for _, step := range snap.Steps {
				if seen[step.ID] != step.Status {
					seen[step.ID] = step.Status
					fmt.Fprintf(w, "[%s] %s\n", step.Status, step.Label)
				}
			}
			if snap.Status.IsTerminal() {
				return snap, nil
			}
		}
	}
}

func reportOutcome(ctx context.Context, a *app, final session.Snapshot) error {
	completion, ok := a.waitCompletion(ctx)
	if final.Status != session.StatusSuccess {
		msg := final.Error
		if msg == "" {
			msg = "deployment failed"
		}
		if url := a.workspace.LastArchive(); ok && url != "" {
			ui.Info("Logs archived at " + url)
		}
		return errors.New(msg)
	}

	ui.Success("Deployment succeeded")
	if ok && completion.DeployURL != "" {
		ui.Info("URL: " + completion.DeployURL)
	}
	if url := a.workspace.LastArchive(); url != "" {
		ui.Info("Logs archived at " + url)
	}
	return nil
}

func printDraft(d *deployment.Config) {
	t := ui.NewTable("FIELD", "VALUE")
	t.AddRow("service", d.ServiceName)
	if d.RepoURL != "" {
		t.AddRow("repository", d.RepoURL)
	}
	if d.Branch != "" {
		t.AddRow("branch", d.Branch)
	}
	t.AddRow("target", string(d.DeploymentTarget))
	if d.TargetReason != "" {
		t.AddRow("reason", d.TargetReason)
	}
	if d.RunCommand != "" {
		t.AddRow("run", d.RunCommand)
	}
	for _, w := range d.TargetWarnings {
		t.AddRow("warning", w)
	}
	ui.PrintTable(t)
}

// readDraftFile reads a deployment draft. YAML and JSON files use the same
// field names as the stored record.
func readDraftFile(path string) (*deployment.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read draft: %w", err)
	}
	return decodeDraft(data, filepath.Ext(path))
}

func decodeDraft(data []byte, ext string) (*deployment.Config, error) {
	var raw map[string]any
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse draft: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse draft: %w", err)
		}
	}

	// Round trip through JSON so both formats share the record's tags.
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse draft: %w", err)
	}
	var draft deployment.Config
	if err := json.Unmarshal(encoded, &draft); err != nil {
		return nil, fmt.Errorf("failed to parse draft: %w", err)
	}
	if draft.ServiceName == "" {
		return nil, errors.New("draft: serviceName is required")
	}
	draft.Status = ""
	return &draft, nil
}
