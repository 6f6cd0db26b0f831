package app

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/certxg/knime-scripting/internal/config"
	"github.com/certxg/knime-scripting/internal/ctxlog"
	"github.com/certxg/knime-scripting/internal/table"
)

// Run executes all loaded workflows and blocks until they finish. Workflows
// run concurrently on the worker pool; nodes within one workflow run
// sequentially, each receiving its predecessor's table.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	defer a.runtime.Close()
	a.logger.Debug("App.Run method started.")

	workflows := a.model.Workflows
	if len(workflows) == 0 {
		a.logger.Warn("No workflows found, execution not required.")
		return nil
	}

	workers := a.workers
	if workers > len(workflows) {
		workers = len(workflows)
	}
	a.logger.Info("🚀 Starting workflow execution...", "workflows", len(workflows), "workers", workers)

	jobs := make(chan *config.Workflow)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []string
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for wf := range jobs {
				if err := a.runWorkflow(ctx, wf); err != nil {
					a.logger.Error("Workflow failed.", "workflow", wf.Name, "error", err)
					mu.Lock()
					failed = append(failed, wf.Name+": "+err.Error())
					mu.Unlock()
				}
			}
		}()
	}
	for _, wf := range workflows {
		jobs <- wf
	}
	close(jobs)
	wg.Wait()

	if len(failed) > 0 {
		return errors.Errorf("%d of %d workflows failed:\n%s",
			len(failed), len(workflows), strings.Join(failed, "\n"))
	}
	a.logger.Info("🏁 Execution finished.")
	return nil
}

// runWorkflow runs one workflow's nodes in order, piping each node's output
// table into the next.
func (a *App) runWorkflow(ctx context.Context, wf *config.Workflow) error {
	logger := a.logger.With("workflow", wf.Name)
	nodeCtx := ctxlog.WithLogger(ctx, logger)

	current, err := table.New()
	if err != nil {
		return err
	}

	for _, node := range wf.Nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Validated at startup, so the lookup cannot miss.
		rr, ok := a.registry.Runner(node.Kind)
		if !ok {
			return errors.Errorf("node %q has unknown kind %q", node.Name, node.Kind)
		}

		logger.Info("Running node.", "kind", node.Kind, "node", node.Name)
		res, err := rr.Fn(nodeCtx, a.deps, node.Body, current)
		if err != nil {
			return errors.Wrapf(err, "node %q (%s)", node.Name, node.Kind)
		}
		if res == nil {
			continue
		}
		if res.Table != nil {
			current = res.Table
		}
		if res.ImagePath != "" {
			logger.Info("Plot image written.", "node", node.Name, "path", res.ImagePath)
		}
	}

	logger.Info("Workflow finished.", "nodes", len(wf.Nodes))
	return nil
}
