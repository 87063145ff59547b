package packager

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	apperrors "github.com/meridian-data/etl-deployer/internal/errors"
)

// Variant selects which dependency set is installed into the artifact.
// Exactly one variant is chosen per run; it is never auto-detected.
type Variant string

const (
	// VariantNone installs no dependencies at all.
	VariantNone Variant = "none"

	// VariantLightweight installs only the lightweight dependency list.
	VariantLightweight Variant = "lightweight"

	// VariantAll installs the lightweight and heavy dependency lists. When
	// the manifest enables a separate layer, the heavy list goes into a
	// second archive instead of the function archive.
	VariantAll Variant = "all"
)

// ParseVariant validates a variant string.
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantNone, VariantLightweight, VariantAll:
		return Variant(s), nil
	default:
		return "", fmt.Errorf("%w: %q (expected none, lightweight, or all)", apperrors.ErrUnknownPackageVariant, s)
	}
}

// Dependencies declares the two dependency lists a manifest may carry.
type Dependencies struct {
	Lightweight []string `yaml:"lightweight"`
	Heavy       []string `yaml:"heavy"`
}

// Manifest declares what goes into the deployment artifact.
type Manifest struct {
	// Handler is the entry point file. The finished archive must contain it.
	Handler string `yaml:"handler"`

	// Sources are the required source files, relative to the manifest's
	// directory. A missing source fails the run fast.
	Sources []string `yaml:"sources"`

	Dependencies Dependencies `yaml:"dependencies"`

	// SeparateLayer, with the all variant, puts heavy dependencies into a
	// second layer archive rather than the function archive.
	SeparateLayer bool `yaml:"separate_layer"`

	// dir is the manifest file's directory; source paths resolve against it.
	dir string
}

// LoadManifest reads and validates a packaging manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	if m.Handler == "" {
		return nil, fmt.Errorf("manifest %s: handler is required", path)
	}
	if len(m.Sources) == 0 {
		return nil, fmt.Errorf("manifest %s: at least one source file is required", path)
	}

	found := false
	for _, src := range m.Sources {
		if src == m.Handler {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("manifest %s: handler %s must be listed in sources", path, m.Handler)
	}

	m.dir = filepath.Dir(path)
	return &m, nil
}

// SourcePath resolves a source entry against the manifest directory.
func (m *Manifest) SourcePath(src string) string {
	return filepath.Join(m.dir, src)
}

// DependenciesFor returns the dependency list the variant installs into the
// function archive, and separately the list destined for the layer archive.
func (m *Manifest) DependenciesFor(v Variant) (function, layer []string) {
	switch v {
	case VariantNone:
		return nil, nil
	case VariantLightweight:
		return m.Dependencies.Lightweight, nil
	case VariantAll:
		if m.SeparateLayer {
			return m.Dependencies.Lightweight, m.Dependencies.Heavy
		}
		return append(append([]string{}, m.Dependencies.Lightweight...), m.Dependencies.Heavy...), nil
	}
	return nil, nil
}
