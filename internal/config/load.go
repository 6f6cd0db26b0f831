package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pkg/errors"

	"github.com/certxg/knime-scripting/internal/ctxlog"
)

// fileRoot decodes all top-level blocks a configuration file may carry.
type fileRoot struct {
	Engines []*engineBlock `hcl:"engine,block"`
	Remote  *remoteBlock   `hcl:"remote,block"`
	Nodes   []*nodeBlock   `hcl:"node,block"`
}

type engineBlock struct {
	Name           string   `hcl:"name,label"`
	Executable     string   `hcl:"executable"`
	Args           []string `hcl:"args,optional"`
	Sessions       int      `hcl:"sessions,optional"`
	StartupTimeout string   `hcl:"startup_timeout,optional"`
}

type remoteBlock struct {
	Address string `hcl:"address"`
}

type nodeBlock struct {
	Kind string   `hcl:"kind,label"`
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// Load parses every .hcl file under the given paths and merges them into one
// Model. Engine and remote blocks merge globally; each file with node blocks
// becomes one workflow named after the file.
func Load(ctx context.Context, paths ...string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Configuration loader started.", "path_count", len(paths))

	files, err := findHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered configuration files.", "count", len(files))

	model := &Model{Engines: make(map[string]*Engine)}
	parser := hclparse.NewParser()

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, errors.Wrapf(diags, "parse %s", file)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, errors.Wrapf(diags, "decode %s", file)
		}

		for _, eb := range root.Engines {
			eng, err := translateEngine(eb)
			if err != nil {
				return nil, errors.Wrapf(err, "engine %q in %s", eb.Name, file)
			}
			if _, dup := model.Engines[eng.Name]; dup {
				return nil, errors.Errorf("engine %q redefined in %s", eng.Name, file)
			}
			model.Engines[eng.Name] = eng
		}

		if root.Remote != nil {
			if model.Remote != nil {
				return nil, errors.Errorf("remote block redefined in %s", file)
			}
			if root.Remote.Address == "" {
				return nil, errors.Errorf("remote block in %s has an empty address", file)
			}
			model.Remote = &Remote{Address: root.Remote.Address}
		}

		if len(root.Nodes) == 0 {
			continue
		}
		wf := &Workflow{
			Name: strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)),
			Path: file,
		}
		for _, nb := range root.Nodes {
			if nb.Kind == "" {
				return nil, errors.Errorf("node with empty kind in %s", file)
			}
			wf.Nodes = append(wf.Nodes, &Node{Kind: nb.Kind, Name: nb.Name, Body: nb.Body})
		}
		model.Workflows = append(model.Workflows, wf)
		logger.Debug("Workflow loaded.", "workflow", wf.Name, "nodes", len(wf.Nodes))
	}

	logger.Info("Configuration loaded.",
		"engines", len(model.Engines),
		"workflows", len(model.Workflows),
		"remote", model.Remote != nil)
	return model, nil
}

func translateEngine(eb *engineBlock) (*Engine, error) {
	if eb.Executable == "" {
		return nil, errors.New("executable must not be empty")
	}
	if eb.Sessions < 0 {
		return nil, errors.Errorf("sessions must not be negative, got %d", eb.Sessions)
	}
	eng := &Engine{
		Name:       eb.Name,
		Executable: eb.Executable,
		Args:       eb.Args,
		Sessions:   eb.Sessions,
	}
	if eng.Sessions == 0 {
		eng.Sessions = 1
	}
	if eb.StartupTimeout != "" {
		d, err := time.ParseDuration(eb.StartupTimeout)
		if err != nil {
			return nil, errors.Wrap(err, "startup_timeout")
		}
		eng.StartupTimeout = d
	}
	return eng, nil
}

// findHCLFiles walks the given paths and returns every .hcl file, each at
// most once. A path that does not exist is skipped rather than rejected.
func findHCLFiles(paths []string) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})

	add := func(p string) {
		if _, ok := seen[p]; !ok {
			all = append(all, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "access %s", path)
		}
		if !info.IsDir() {
			if filepath.Ext(path) == ".hcl" {
				add(path)
			}
			continue
		}
		err = filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return all, nil
}
