package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/certxg/knime-scripting/internal/config"
	"github.com/certxg/knime-scripting/internal/ctxlog"
	"github.com/certxg/knime-scripting/internal/registry"
	"github.com/certxg/knime-scripting/internal/table"
)

// App encapsulates the workbench's dependencies, configuration, and
// lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	model    *config.Model
	runtime  *engineRuntime
	deps     *registry.Deps
	workers  int
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
func NewApp(outW io.Writer, appConfig *Config, modules ...registry.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	var configPaths []string
	if appConfig.WorkflowPath != "" {
		configPaths = append(configPaths, appConfig.WorkflowPath)
	}
	if appConfig.ConfigPath != "" {
		configPaths = append(configPaths, appConfig.ConfigPath)
	}

	model, err := config.Load(ctx, configPaths...)
	if err != nil {
		// A failure to load config is a fatal startup error.
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	if err := reg.Validate(ctx, model); err != nil {
		// A node naming an unregistered kind is caught before execution.
		panic(err)
	}

	runtime := newEngineRuntime(model)
	deps := &registry.Deps{
		NewClient:      runtime.newClient,
		NewLocalClient: runtime.newLocalClient,
		Engines:        model.Engines,
		TableCtx:       table.NewContext(),
		EvalCtx:        config.EvalContext(),
	}

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		model:    model,
		runtime:  runtime,
		deps:     deps,
		workers:  appConfig.WorkerCount,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Model returns the loaded configuration model. This is primarily for
// testing.
func (a *App) Model() *config.Model {
	return a.model
}
