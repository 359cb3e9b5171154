package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/animgraph/internal/ir"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains a definition loaded from a directory.
type LoadResult struct {
	Def       *ir.GraphDef
	Hash      string    // ir.DefinitionHash of Def
	CUEValue  cue.Value // the raw CUE value
	FileCount int       // number of CUE files found
}

// Load loads every CUE file in dir as one package and compiles it.
// Compile errors are *CompileError; the definition is not validated.
// In LoadModeCollectAll a partial result is returned alongside the errors.
func Load(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&CompileError{Code: ErrCodeNotFound, Field: "dir", Message: fmt.Sprintf("definition directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&CompileError{Code: ErrCodeNotFound, Field: "dir", Message: fmt.Sprintf("error accessing definition directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&CompileError{Code: ErrCodeNotFound, Field: "dir", Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&CompileError{Code: ErrCodeScanError, Field: "dir", Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&CompileError{Code: ErrCodeNoFiles, Field: "dir", Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&CompileError{Code: ErrCodeLoadFailed, Field: "cue", Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&CompileError{Code: ErrCodeLoadFailed, Field: "cue", Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	result := &LoadResult{CUEValue: value, FileCount: len(cueFiles)}
	def, errs := compileGraph(value, mode)
	result.Def = def
	if def != nil && len(errs) == 0 {
		hash, err := ir.DefinitionHash(def)
		if err != nil {
			return result, []error{&CompileError{Code: ErrCodeGeneric, Field: "definition", Message: fmt.Sprintf("hashing definition: %v", err)}}
		}
		result.Hash = hash
	}
	return result, errs
}

// LoadDir loads, compiles and validates the definition in dir. It is the
// fail-fast entry point used by the engine drivers.
func LoadDir(dir string) (*ir.GraphDef, error) {
	result, errs := Load(dir, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if verrs := Validate(result.Def); len(verrs) > 0 {
		return nil, verrs[0]
	}
	return result.Def, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
