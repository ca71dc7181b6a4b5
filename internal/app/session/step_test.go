package session

import (
	"reflect"
	"testing"
)

func stepIDs(steps []Step) []string {
	ids := make([]string, 0, len(steps))
	for _, s := range steps {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestRegistry_Reset(t *testing.T) {
	r := NewRegistry(DefaultSteps())
	r.AppendLog("build", "compiling", DefaultMarkers())

	r.Reset([]StepDef{{ID: "a", Label: "A"}})

	if r.Len() != 1 {
		t.Fatalf("Expected 1 step after reset, got %d", r.Len())
	}
	step, _ := r.Get("a")
	if step.Status != StepPending || len(step.Logs) != 0 {
		t.Errorf("Expected fresh pending step, got %+v", step)
	}
	if _, ok := r.Get("build"); ok {
		t.Error("Expected build step to be gone after reset")
	}
}

func TestRegistry_AppendLog(t *testing.T) {
	markers := DefaultMarkers()

	tests := []struct {
		name     string
		messages []string
		want     StepStatus
	}{
		{"plain line starts the step", []string{"installing"}, StepInProgress},
		{"success marker", []string{"installing", "done ✅"}, StepSuccess},
		{"error marker", []string{"npm ERR ❌ failed"}, StepError},
		{"error wins over success in one line", []string{"✅ tests ❌ lint"}, StepError},
		{"success is sticky", []string{"done ✅", "cleaning up"}, StepSuccess},
		{"error is sticky", []string{"❌ failed", "retrying ✅"}, StepError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(DefaultSteps())
			for _, msg := range tt.messages {
				r.AppendLog("build", msg, markers)
			}
			step, _ := r.Get("build")
			if step.Status != tt.want {
				t.Errorf("Expected status %s, got %s", tt.want, step.Status)
			}
			if !reflect.DeepEqual(step.Logs, tt.messages) {
				t.Errorf("Expected logs %v, got %v", tt.messages, step.Logs)
			}
		})
	}
}

func TestRegistry_AppendLogUnknownStep(t *testing.T) {
	r := NewRegistry(DefaultSteps())

	created := r.AppendLog("migrate", "running migrations", DefaultMarkers())
	if !created {
		t.Error("Expected unknown step to be synthesized")
	}

	step, ok := r.Get("migrate")
	if !ok {
		t.Fatal("Expected migrate step to exist")
	}
	if step.Label != "migrate" {
		t.Errorf("Expected label to default to the ID, got %q", step.Label)
	}
	if len(step.Logs) != 1 || step.Logs[0] != "running migrations" {
		t.Errorf("Expected the log line to be kept, got %v", step.Logs)
	}

	ids := stepIDs(r.Steps())
	if ids[len(ids)-1] != "migrate" {
		t.Errorf("Expected synthesized step at the end, got %v", ids)
	}
}

func TestRegistry_Merge(t *testing.T) {
	markers := DefaultMarkers()
	r := NewRegistry([]StepDef{
		{ID: "clone", Label: "Clone"},
		{ID: "build", Label: "Build"},
		{ID: "legacy", Label: "Legacy"},
	})
	r.AppendLog("clone", "cloned ✅", markers)
	r.AppendLog("build", "building", markers)

	r.Merge([]StepDef{
		{ID: "build", Label: "Build image"},
		{ID: "push", Label: "Push image"},
	})

	want := []string{"clone", "build", "push"}
	if got := stepIDs(r.Steps()); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected order %v, got %v", want, got)
	}

	clone, _ := r.Get("clone")
	if clone.Status != StepSuccess || len(clone.Logs) != 1 {
		t.Errorf("Expected unlisted clone step to keep its progress, got %+v", clone)
	}
	build, _ := r.Get("build")
	if build.Label != "Build image" || build.Status != StepInProgress || len(build.Logs) != 1 {
		t.Errorf("Expected build step relabelled with progress kept, got %+v", build)
	}
	push, _ := r.Get("push")
	if push.Status != StepPending || len(push.Logs) != 0 {
		t.Errorf("Expected new pending push step, got %+v", push)
	}
	if _, ok := r.Get("legacy"); ok {
		t.Error("Expected empty unlisted step to be dropped")
	}
}

func TestRegistry_MergeNeverLosesLogs(t *testing.T) {
	markers := DefaultMarkers()
	r := NewRegistry(DefaultSteps())

	lists := [][]StepDef{
		{{ID: "x"}},
		{},
		{{ID: "build"}, {ID: "auth"}},
		{{ID: "deploy", Label: "Deploy"}},
	}

	logged := map[string]int{}
	for i, defs := range lists {
		for _, id := range []string{"auth", "build", "deploy"} {
			r.AppendLog(id, "line", markers)
			logged[id]++
		}
		r.Merge(defs)

		for id, n := range logged {
			step, ok := r.Get(id)
			if !ok {
				t.Fatalf("merge %d removed step %s with logs", i, id)
			}
			if len(step.Logs) != n {
				t.Errorf("merge %d: expected %d logs on %s, got %d", i, n, id, len(step.Logs))
			}
		}
	}
}

func TestRegistry_MergeDuplicateIDs(t *testing.T) {
	r := NewRegistry(nil)
	r.Merge([]StepDef{{ID: "a"}, {ID: "a", Label: "again"}, {ID: ""}})

	if r.Len() != 1 {
		t.Errorf("Expected 1 step, got %d", r.Len())
	}
}

func TestRegistry_StepsAreCopies(t *testing.T) {
	r := NewRegistry(DefaultSteps())
	r.AppendLog("auth", "ok", DefaultMarkers())

	steps := r.Steps()
	steps[0].Logs[0] = "tampered"
	steps[0].Status = StepError

	step, _ := r.Get("auth")
	if step.Logs[0] != "ok" || step.Status == StepError {
		t.Errorf("Expected registry to be unaffected by caller mutation, got %+v", step)
	}
}
