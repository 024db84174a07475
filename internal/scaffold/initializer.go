package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/ozzaii/beatflow/internal/config"
	"github.com/ozzaii/beatflow/internal/exchange"
	"github.com/ozzaii/beatflow/pkg/patterns"
)

//go:embed templates/*
var templatesFS embed.FS

// ExamplePath is where Initialize puts the example artefact.
var ExamplePath = filepath.Join("patterns", "example.json")

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Options fills in the generated files.
type Options struct {
	Namespace    string // default config.DefaultNamespace
	Kit          string // default patterns.DefaultKit
	DatabasePath string // default "beatflow.db"
	Force        bool   // replace an existing beatflow.yml
}

// Initialize writes beatflow.yml and an example pattern artefact into dir and
// returns the paths it created, relative to dir.
// If opts.Force is false and beatflow.yml exists, nothing is written.
func Initialize(dir string, opts Options) ([]string, error) {
	opts = withDefaults(opts)
	if err := config.ValidateNamespace(opts.Namespace); err != nil {
		return nil, err
	}

	if opts.Force {
		if err := handleForce(dir); err != nil {
			return nil, err
		}
	} else if err := CheckExisting(dir); err != nil {
		return nil, err
	}

	files, err := getTemplateFiles(opts)
	if err != nil {
		return nil, err
	}

	if err := writeFiles(dir, files); err != nil {
		return nil, err
	}

	if err := validateCreatedFiles(dir); err != nil {
		return nil, err
	}

	created := make([]string, len(files))
	for i, f := range files {
		created[i] = f.Path
	}
	return created, nil
}

func withDefaults(opts Options) Options {
	if opts.Namespace == "" {
		opts.Namespace = config.DefaultNamespace
	}
	if opts.Kit == "" {
		opts.Kit = patterns.DefaultKit
	}
	if opts.DatabasePath == "" {
		opts.DatabasePath = "beatflow.db"
	}
	return opts
}

// handleForce removes an existing beatflow.yml. Stored patterns are left alone.
func handleForce(dir string) error {
	path := filepath.Join(dir, config.DefaultPath)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", config.DefaultPath, err)
	}
	return nil
}

// getTemplateFiles renders all template files
func getTemplateFiles(opts Options) ([]FileInfo, error) {
	cfg, err := render("templates/beatflow.yml.tmpl", opts)
	if err != nil {
		return nil, err
	}
	example, err := render("templates/example.json.tmpl", opts)
	if err != nil {
		return nil, err
	}

	return []FileInfo{
		{Path: config.DefaultPath, Content: cfg, Permissions: 0o644},
		{Path: ExamplePath, Content: example, Permissions: 0o644},
	}, nil
}

func render(name string, opts Options) ([]byte, error) {
	tmpl, err := template.ParseFS(templatesFS, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, opts); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// writeFiles writes all files under dir, creating parent directories. An
// existing example artefact is kept.
func writeFiles(dir string, files []FileInfo) error {
	for _, file := range files {
		path := filepath.Join(dir, file.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", file.Path, err)
		}
		if file.Path == ExamplePath {
			if _, err := os.Stat(path); err == nil {
				continue
			}
		}
		if err := os.WriteFile(path, file.Content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}
	return nil
}

// validateCreatedFiles checks the config loads and the example imports.
func validateCreatedFiles(dir string) error {
	if _, err := config.Load(filepath.Join(dir, config.DefaultPath)); err != nil {
		return fmt.Errorf("created %s is invalid: %w", config.DefaultPath, err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ExamplePath))
	if err != nil {
		return fmt.Errorf("failed to read created %s: %w", ExamplePath, err)
	}
	if _, err := exchange.ParseDraft(data); err != nil {
		return fmt.Errorf("created %s does not import: %w", ExamplePath, err)
	}
	return nil
}
