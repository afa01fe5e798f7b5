package stages

import (
	"fmt"
	"os/exec"

	"github.com/jackzampolin/docket/internal/pipeline"
)

// lookTools confirms the named binaries are on PATH.
func lookTools(tools ...string) error {
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("required tool %q not found in PATH", tool)
		}
	}
	return nil
}

// All returns the full stage set in canonical order.
func All() []pipeline.Stage {
	return []pipeline.Stage{
		&Collect{},
		&Rename{},
		&Clean{},
		&Convert{},
		&TextImport{},
		&Format{},
		&Upload{},
		&Verify{},
	}
}

// RegisterAll registers every stage into the registry.
func RegisterAll(r *pipeline.Registry) error {
	for _, s := range All() {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}
