// Package plugin loads WebAssembly-backed callables and binds them on an
// engine. A plugin ships a manifest describing the functions it exports;
// calls cross the module boundary as JSON over shared memory.
package plugin

import (
	"context"
	"encoding/json"
	"time"
)

// Plugin is a loaded plugin instance.
type Plugin interface {
	// Metadata returns the plugin's manifest.
	Metadata() Metadata

	// Call invokes a function exported by the plugin.
	Call(ctx context.Context, function string, input []byte) ([]byte, error)

	// Close releases plugin resources.
	Close(ctx context.Context) error
}

// Metadata is a plugin manifest.
type Metadata struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Author      string `json:"author,omitempty" yaml:"author,omitempty"`
	License     string `json:"license,omitempty" yaml:"license,omitempty"`

	// Binary is the path to the .wasm file, relative to the manifest.
	Binary string `json:"binary" yaml:"binary"`

	// Funcs lists the callables the plugin exports.
	Funcs []FuncDefinition `json:"funcs" yaml:"funcs"`

	Permissions Permissions `json:"permissions,omitempty" yaml:"permissions,omitempty"`
}

// FuncDefinition describes one callable exported by a plugin.
type FuncDefinition struct {
	Name        string   `json:"name" yaml:"name"`
	Args        []string `json:"args,omitempty" yaml:"args,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Async       bool     `json:"async,omitempty" yaml:"async,omitempty"`
}

// Permissions defines what the plugin is allowed to access.
type Permissions struct {
	// Env lists the environment variable names passed through.
	Env []string `json:"env,omitempty" yaml:"env,omitempty"`

	// Filesystem lists directories mounted read-only.
	Filesystem []string `json:"filesystem,omitempty" yaml:"filesystem,omitempty"`

	// Memory is the maximum linear memory (e.g. "16MB").
	Memory string `json:"memory,omitempty" yaml:"memory,omitempty"`

	// Timeout is the maximum execution time per call.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Request is the JSON payload sent to a plugin function.
type Request struct {
	Func string `json:"func"`
	Args []any  `json:"args,omitempty"`
}

// Response is the JSON payload returned from a plugin function.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Output  json.RawMessage `json:"output,omitempty"`
}
