package registry

import (
	"context"

	"github.com/pkg/errors"

	"github.com/certxg/knime-scripting/internal/config"
	"github.com/certxg/knime-scripting/internal/ctxlog"
)

// Validate checks that every node in the configuration names a registered
// runner. A mismatch between workflows and compiled runners is caught here,
// before execution starts.
func (r *Registry) Validate(ctx context.Context, model *config.Model) error {
	logger := ctxlog.FromContext(ctx)

	for _, wf := range model.Workflows {
		for _, node := range wf.Nodes {
			if _, ok := r.runners[node.Kind]; !ok {
				return errors.Errorf("workflow %q: node %q has unknown kind %q (registered: %v)",
					wf.Name, node.Name, node.Kind, r.Kinds())
			}
		}
	}

	logger.Debug("Registry validation passed.", "kinds", r.Kinds())
	return nil
}
