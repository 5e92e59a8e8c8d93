package compiler

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// CompileFiles compiles the models declared across paths, in path order.
// Each file is compiled on its own, so models refer to each other by name
// only.
func CompileFiles(paths ...string) ([]ModelSpec, error) {
	ctx := cuecontext.New()
	var out []ModelSpec
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read model file: %w", err)
		}
		specs, err := CompileModels(ctx.CompileBytes(data, cue.Filename(path)))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, specs...)
	}
	return out, nil
}

// Load compiles, validates and builds the models in paths. Validation
// failures are joined into one error.
func Load(paths ...string) (*Catalog, error) {
	specs, err := CompileFiles(paths...)
	if err != nil {
		return nil, err
	}
	if verrs := Validate(specs); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, errors.Join(errs...)
	}
	return Build(specs)
}
