package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	goyaml "github.com/goccy/go-yaml"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

const wasmPageSize = 65536

// Exported symbols of a plugin module. The call and alloc exports are
// required; the free export is called only when present.
const (
	exportCall  = "__dflow_call"
	exportAlloc = "__dflow_alloc"
	exportFree  = "__dflow_free"
)

// wasmPlugin implements Plugin over a wazero runtime. Calls are
// serialized with a mutex; the guest is single-threaded.
type wasmPlugin struct {
	metadata Metadata
	runtime  wazero.Runtime
	module   api.Module
	callFunc api.Function

	mu sync.Mutex
}

// New instantiates a plugin from wasm bytes and its manifest.
func New(ctx context.Context, wasmBytes []byte, metadata Metadata) (Plugin, error) {
	runtimeConfig := wazero.NewRuntimeConfig()
	if metadata.Permissions.Memory != "" {
		limit, err := parseMemoryLimit(metadata.Permissions.Memory)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: invalid memory limit: %w", metadata.Name, err)
		}
		runtimeConfig = runtimeConfig.WithMemoryLimitPages(uint32(limit / wasmPageSize))
	}

	r := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("plugin %s: compile: %w", metadata.Name, err)
	}

	moduleConfig := wazero.NewModuleConfig().
		WithName(metadata.Name).
		WithStartFunctions()
	for _, name := range metadata.Permissions.Env {
		if value := os.Getenv(name); value != "" {
			moduleConfig = moduleConfig.WithEnv(name, value)
		}
	}
	// wazero mounts a single filesystem, so the first allowed
	// directory wins.
	for _, path := range metadata.Permissions.Filesystem {
		if stat, err := os.Stat(path); err == nil && stat.IsDir() {
			moduleConfig = moduleConfig.WithFS(os.DirFS(path))
			break
		}
	}

	module, err := r.InstantiateModule(ctx, compiled, moduleConfig)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("plugin %s: instantiate: %w", metadata.Name, err)
	}

	for _, required := range []string{exportCall, exportAlloc} {
		if module.ExportedFunction(required) == nil {
			module.Close(ctx)
			r.Close(ctx)
			return nil, fmt.Errorf("plugin %s: missing export %s", metadata.Name, required)
		}
	}
	if module.ExportedMemory("memory") == nil {
		module.Close(ctx)
		r.Close(ctx)
		return nil, fmt.Errorf("plugin %s: missing memory export", metadata.Name)
	}

	return &wasmPlugin{
		metadata: metadata,
		runtime:  r,
		module:   module,
		callFunc: module.ExportedFunction(exportCall),
	}, nil
}

// Metadata returns the plugin's manifest.
func (p *wasmPlugin) Metadata() Metadata {
	return p.metadata
}

// Call writes input into guest memory, invokes the exported call
// function, and reads back the (ptr, len) pair it returns.
func (p *wasmPlugin) Call(ctx context.Context, function string, input []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.metadata.Permissions.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.metadata.Permissions.Timeout)
		defer cancel()
	}

	memory := p.module.ExportedMemory("memory")
	allocFunc := p.module.ExportedFunction(exportAlloc)
	freeFunc := p.module.ExportedFunction(exportFree)

	inputLen := uint32(len(input))
	results, err := allocFunc.Call(ctx, uint64(inputLen))
	if err != nil {
		return nil, fmt.Errorf("plugin %s: alloc: %w", p.metadata.Name, err)
	}
	inputPtr := uint32(results[0])
	if !memory.Write(inputPtr, input) {
		return nil, fmt.Errorf("plugin %s: cannot write input to guest memory", p.metadata.Name)
	}

	results, err = p.callFunc.Call(ctx, uint64(inputPtr), uint64(inputLen))
	if err != nil {
		return nil, fmt.Errorf("plugin %s: call %s: %w", p.metadata.Name, function, err)
	}
	if freeFunc != nil {
		_, _ = freeFunc.Call(ctx, uint64(inputPtr), uint64(inputLen))
	}

	resultPtr := uint32(results[0])
	resultLen := uint32(results[1])
	if resultLen == 0 {
		return nil, nil
	}
	output, ok := memory.Read(resultPtr, resultLen)
	if !ok {
		return nil, fmt.Errorf("plugin %s: cannot read output from guest memory", p.metadata.Name)
	}
	out := append([]byte(nil), output...)
	if freeFunc != nil {
		_, _ = freeFunc.Call(ctx, uint64(resultPtr), uint64(resultLen))
	}
	return out, nil
}

// Close releases the module and runtime.
func (p *wasmPlugin) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.module != nil {
		_ = p.module.Close(ctx)
	}
	if p.runtime != nil {
		return p.runtime.Close(ctx)
	}
	return nil
}

// Load reads a manifest (manifest.yaml or manifest.json next to path, or
// path itself when it names a manifest) plus the wasm binary it points
// to, and instantiates the plugin.
func Load(ctx context.Context, path string) (Plugin, error) {
	manifestPath := path
	if strings.EqualFold(filepath.Ext(path), ".wasm") {
		manifestPath = filepath.Join(filepath.Dir(path), "manifest.yaml")
		if _, err := os.Stat(manifestPath); err != nil {
			manifestPath = filepath.Join(filepath.Dir(path), "manifest.json")
		}
	}
	manifestData, err := os.ReadFile(manifestPath) // #nosec G304 - user-provided plugin path
	if err != nil {
		return nil, fmt.Errorf("plugin: read manifest: %w", err)
	}

	// go-yaml reads JSON manifests too, so one decoder covers both.
	var metadata Metadata
	if err := goyaml.Unmarshal(manifestData, &metadata); err != nil {
		return nil, fmt.Errorf("plugin: parse manifest %s: %w", manifestPath, err)
	}
	if metadata.Name == "" {
		return nil, fmt.Errorf("plugin: manifest %s: name is required", manifestPath)
	}
	if metadata.Binary == "" {
		return nil, fmt.Errorf("plugin: manifest %s: binary is required", manifestPath)
	}

	wasmPath := filepath.Join(filepath.Dir(manifestPath), metadata.Binary)
	wasmBytes, err := os.ReadFile(wasmPath) // #nosec G304 - path from plugin manifest
	if err != nil {
		return nil, fmt.Errorf("plugin: read binary: %w", err)
	}
	return New(ctx, wasmBytes, metadata)
}

// parseMemoryLimit parses limits like "512KB", "16MB", "1GB".
func parseMemoryLimit(limit string) (uint64, error) {
	var value uint64
	var unit string
	if _, err := fmt.Sscanf(limit, "%d%s", &value, &unit); err != nil {
		return 0, err
	}
	switch strings.ToUpper(unit) {
	case "KB":
		return value * 1024, nil
	case "MB":
		return value * 1024 * 1024, nil
	case "GB":
		return value * 1024 * 1024 * 1024, nil
	default:
		return 0, fmt.Errorf("unsupported unit %q", unit)
	}
}
