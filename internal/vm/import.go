package vm

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dasimmet/bog/internal/bytecode"
	"github.com/dasimmet/bog/internal/compiler"
	"github.com/dasimmet/bog/internal/diag"
	"github.com/dasimmet/bog/internal/parser"
	"github.com/dasimmet/bog/internal/value"
)

// Importer resolves an import id (spec.md §4.6) to source bytes. isBytecode
// reports whether src is a compiled .bogc module rather than .bog source.
type Importer interface {
	Resolve(id string) (src []byte, isBytecode bool, err error)
}

// fileImporter resolves id against a base directory, trying id+".bogc"
// before id+".bog" so a precompiled module shadows its own source.
type fileImporter struct {
	baseDir string
	maxSize int64
}

func (f fileImporter) Resolve(id string) ([]byte, bool, error) {
	for _, cand := range []struct {
		path string
		bc   bool
	}{
		{filepath.Join(f.baseDir, id+".bogc"), true},
		{filepath.Join(f.baseDir, id+".bog"), false},
	} {
		info, err := os.Stat(cand.path)
		if err != nil {
			continue
		}
		if info.Size() > f.maxSize {
			return nil, false, fmt.Errorf("import %q exceeds max import size (%d bytes)", id, f.maxSize)
		}
		data, err := os.ReadFile(cand.path)
		if err != nil {
			return nil, false, err
		}
		return data, cand.bc, nil
	}
	return nil, false, fmt.Errorf("cannot resolve import %q", id)
}

// resolveImport implements the Import opcode: resolve id to a module
// (source or bytecode), compile/decode it if not already cached, execute
// its top level exactly once, and cache the result. A cyclic import
// (import currently in progress higher up the call chain) returns the
// partial none value available so far rather than deadlocking or erroring,
// logged at Warn — imports form a DAG in well-behaved programs, and a cycle
// is a host/script authoring mistake, not a VM-fatal condition.
func (m *VM) resolveImport(id string) (value.Value, error) {
	if v, ok := m.loaded[id]; ok {
		return v, nil
	}
	if m.loading[id] {
		m.opts.Logger.Warn("cyclic import observed, returning partial result", "module", id)
		return m.loaded[id], nil
	}
	if !m.opts.ImportFiles {
		return value.None, fmt.Errorf("import %q: file imports are disabled", id)
	}
	importer := m.opts.Importer
	if importer == nil {
		importer = fileImporter{baseDir: ".", maxSize: int64(m.opts.MaxImportSize)}
	}

	src, isBC, err := importer.Resolve(id)
	if err != nil {
		return value.None, err
	}
	if uint32(len(src)) > m.opts.MaxImportSize {
		return value.None, fmt.Errorf("import %q exceeds max import size (%d bytes)", id, m.opts.MaxImportSize)
	}

	var module *bytecode.Module
	if isBC {
		module, _, err = bytecode.Read(bytes.NewReader(src), id)
		if err != nil {
			return value.None, fmt.Errorf("import %q: %w", id, err)
		}
	} else {
		var diags diag.List
		tree, perr := parser.Parse(src, &diags)
		if perr != nil || diags.HasErr() {
			return value.None, fmt.Errorf("import %q: %s", id, diag.RenderString(id, src, diags.Entries))
		}
		module, err = compiler.Compile(tree, id, &diags)
		if err != nil {
			return value.None, fmt.Errorf("import %q: %s", id, diag.RenderString(id, src, diags.Entries))
		}
	}

	hash, err := bytecode.ContentHash(module)
	if err != nil {
		return value.None, fmt.Errorf("import %q: %w", id, err)
	}
	if result, ok := m.loadedHash[hash]; ok {
		// Identical content already executed under a different id (spec.md
		// §4.6): skip re-running its top level, just alias this id to it.
		m.loaded[id] = result
		return result, nil
	}

	m.loading[id] = true
	m.loaded[id] = value.None
	result, err := m.Run(module)
	delete(m.loading, id)
	if err != nil {
		return value.None, fmt.Errorf("import %q: %w", id, err)
	}
	m.loaded[id] = result
	m.loadedHash[hash] = result
	return result, nil
}
