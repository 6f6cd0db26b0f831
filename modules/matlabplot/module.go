// Package matlabplot renders a MATLAB plot snippet off-screen and stores the
// resulting PNG image.
package matlabplot

import (
	"context"
	"io"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/pkg/errors"

	"github.com/certxg/knime-scripting/internal/registry"
	"github.com/certxg/knime-scripting/internal/table"
)

const (
	defaultWidth  = 800
	defaultHeight = 600
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the matlab_plot node.
type Input struct {
	Snippet   string `hcl:"snippet"`
	Width     int    `hcl:"width,optional"`
	Height    int    `hcl:"height,optional"`
	Output    string `hcl:"output,optional"`
	TableType string `hcl:"table_type,optional"`
}

// OnRunPlot renders the plot and, when an output path is configured, moves
// the image there before the client's cleanup removes the temporary copy.
func OnRunPlot(ctx context.Context, deps *registry.Deps, body hcl.Body, in *table.Table) (*registry.Result, error) {
	var input Input
	if diags := gohcl.DecodeBody(body, deps.EvalCtx, &input); diags.HasErrors() {
		return nil, errors.Wrap(diags, "decode matlab_plot arguments")
	}
	if input.Width <= 0 {
		input.Width = defaultWidth
	}
	if input.Height <= 0 {
		input.Height = defaultHeight
	}

	client, err := deps.NewClient()
	if err != nil {
		return nil, err
	}
	defer client.Cleanup()
	defer client.Rollback()

	imagePath, err := client.PlotTask(ctx, in, input.Snippet, input.Width, input.Height, input.TableType)
	if err != nil {
		return nil, err
	}

	if input.Output != "" {
		if err := moveFile(imagePath, input.Output); err != nil {
			return nil, errors.Wrap(err, "store plot image")
		}
		imagePath = input.Output
	}
	return &registry.Result{ImagePath: imagePath}, nil
}

// moveFile copies then removes, so it also works across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	srcF, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcF.Close()
	dstF, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dstF, srcF); err != nil {
		dstF.Close()
		return err
	}
	if err := dstF.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// Register registers the runner with the workbench.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("matlab_plot", &registry.RegisteredRunner{
		Description: "Renders a MATLAB plot snippet to a PNG image.",
		Fn:          OnRunPlot,
	})
}
