package storage

import (
	"context"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/yukikurage/mo-task-monitor/internal/models"
	"github.com/yukikurage/mo-task-monitor/internal/repository"
	"golang.org/x/sync/errgroup"
)

// Report describes how the task sets of two backends differ.
type Report struct {
	Source       string   `json:"source"`
	Target       string   `json:"target"`
	OnlyInSource []uint64 `json:"only_in_source"`
	OnlyInTarget []uint64 `json:"only_in_target"`
	Different    []uint64 `json:"different"`
	Applied      bool     `json:"applied"`
}

// InSync reports whether no difference was found.
func (r *Report) InSync() bool {
	return len(r.OnlyInSource) == 0 && len(r.OnlyInTarget) == 0 && len(r.Different) == 0
}

// taskComparer ignores storage-assigned status row IDs and the nil/empty
// distinction, which differ between engines.
var taskComparer = cmp.Options{
	cmpopts.IgnoreFields(models.TaskOrganizationStatus{}, "ID"),
	cmpopts.EquateEmpty(),
}

// TasksEqual reports whether two stored tasks carry the same data.
func TasksEqual(a, b models.Task) bool {
	return cmp.Equal(a, b, taskComparer)
}

// DiffTasks renders a human-readable difference, empty when equal.
func DiffTasks(a, b models.Task) string {
	return cmp.Diff(a, b, taskComparer)
}

// Reconcile compares the tasks of source and target. With apply set and a
// difference found, target's task set is replaced by source's, IDs preserved.
func Reconcile(ctx context.Context, source, target repository.Backend, apply bool) (*Report, error) {
	var sourceTasks, targetTasks []models.Task

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sourceTasks, err = source.Tasks().List(gctx)
		if err != nil {
			return fmt.Errorf("load %s: %w", source.Name(), err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		targetTasks, err = target.Tasks().List(gctx)
		if err != nil {
			return fmt.Errorf("load %s: %w", target.Name(), err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Source: source.Name(), Target: target.Name()}

	inTarget := make(map[uint64]models.Task, len(targetTasks))
	for _, t := range targetTasks {
		inTarget[t.ID] = t
	}
	for _, t := range sourceTasks {
		other, ok := inTarget[t.ID]
		if !ok {
			report.OnlyInSource = append(report.OnlyInSource, t.ID)
			continue
		}
		delete(inTarget, t.ID)
		if !TasksEqual(t, other) {
			report.Different = append(report.Different, t.ID)
		}
	}
	for _, t := range targetTasks {
		if _, ok := inTarget[t.ID]; ok {
			report.OnlyInTarget = append(report.OnlyInTarget, t.ID)
		}
	}

	if apply && !report.InSync() {
		if err := target.Tasks().ReplaceAll(ctx, sourceTasks); err != nil {
			return report, fmt.Errorf("apply to %s: %w", target.Name(), err)
		}
		report.Applied = true
	}
	return report, nil
}

// Direction selects which side of a Fallback is authoritative.
type Direction string

const (
	FromPrimary   Direction = "primary"
	FromSecondary Direction = "secondary"
)

// Reconcile compares the pair and, with apply, mirrors the chosen side onto
// the other. A successful apply clears the divergence flag.
func (f *Fallback) Reconcile(ctx context.Context, from Direction, apply bool) (*Report, error) {
	source, target := f.primary, f.secondary
	switch from {
	case FromPrimary, "":
	case FromSecondary:
		source, target = f.secondary, f.primary
	default:
		return nil, fmt.Errorf("unknown reconcile source %q", from)
	}

	report, err := Reconcile(ctx, source, target, apply)
	if err != nil {
		return report, err
	}
	if apply || report.InSync() {
		f.ClearDivergence()
	}
	return report, nil
}
