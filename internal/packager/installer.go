package packager

import (
	"context"
	"fmt"
	"os/exec"
)

// Installer performs the dependency-installation step, scoped to a declared
// dependency list. Determinism of the install itself is an external
// assumption, not enforced here.
type Installer interface {
	Install(ctx context.Context, targetDir string, deps []string) error
}

// PipInstaller installs Python dependencies with pip into the staging
// directory, the way the Lambda runtime expects them laid out.
type PipInstaller struct {
	// Python is the interpreter invoked as `{Python} -m pip`.
	Python string
}

func NewPipInstaller() *PipInstaller {
	return &PipInstaller{Python: "python3"}
}

func (p *PipInstaller) Install(ctx context.Context, targetDir string, deps []string) error {
	if len(deps) == 0 {
		return nil
	}

	args := append([]string{"-m", "pip", "install", "--target", targetDir, "--quiet"}, deps...)
	cmd := exec.CommandContext(ctx, p.Python, args...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("dependency install failed: %w\n%s", err, out)
	}
	return nil
}

// NoopInstaller ignores the dependency list. Used by tests and the none variant.
type NoopInstaller struct{}

func (NoopInstaller) Install(ctx context.Context, targetDir string, deps []string) error {
	return nil
}
