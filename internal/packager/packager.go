// Package packager assembles the Trigger Function's deployment artifact:
// copy the declared sources into a staging directory, install the selected
// dependency set, prune the denylist, and write a deterministic archive.
package packager

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog"

	apperrors "github.com/meridian-data/etl-deployer/internal/errors"
)

// denyDirs are directory basenames removed wholesale from the staging tree.
var denyDirs = map[string]struct{}{
	"__pycache__":   {},
	"tests":         {},
	"test":          {},
	"examples":      {},
	"example":       {},
	"samples":       {},
	"docs":          {},
	".pytest_cache": {},
}

// denyFilePatterns match file basenames removed from the staging tree,
// including files that arrived inside installed dependencies.
var denyFilePatterns = []string{
	"*.pyc",
	"*.pyo",
	"test_*.py",
	"*_test.py",
	"*.md",
	"*.so.*", // versioned shared objects; bare *.so files stay
}

// Options configures one packaging run.
type Options struct {
	Variant    Variant
	StagingDir string
	OutputPath string

	// LayerOutputPath receives the layer archive when the manifest enables a
	// separate layer and the variant installs heavy dependencies.
	LayerOutputPath string
}

type Packager struct {
	manifest  *Manifest
	installer Installer
}

func New(manifest *Manifest, installer Installer) *Packager {
	return &Packager{
		manifest:  manifest,
		installer: installer,
	}
}

// Build assembles the artifact. It returns (rebuilt=false) when the recorded
// content hash matches the current source set and the artifact already exists.
func (p *Packager) Build(ctx context.Context, opts Options) (rebuilt bool, err error) {
	logger := zerolog.Ctx(ctx)

	hash, err := p.contentHash(opts.Variant)
	if err != nil {
		return false, err
	}

	hashPath := opts.OutputPath + ".sha256"
	if recorded, err := os.ReadFile(hashPath); err == nil {
		if strings.TrimSpace(string(recorded)) == hash {
			if _, err := os.Stat(opts.OutputPath); err == nil {
				logger.Info().Str("artifact", opts.OutputPath).Msg("Artifact up to date, skipping rebuild")
				return false, nil
			}
		}
	}

	// Clear the staging directory first so a failed run can never leave a
	// stale-looking complete tree behind.
	if err := os.RemoveAll(opts.StagingDir); err != nil {
		return false, fmt.Errorf("failed to clear staging dir %s: %w", opts.StagingDir, err)
	}
	if err := os.MkdirAll(opts.StagingDir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create staging dir %s: %w", opts.StagingDir, err)
	}

	for _, src := range p.manifest.Sources {
		srcPath := p.manifest.SourcePath(src)
		if _, err := os.Stat(srcPath); err != nil {
			return false, fmt.Errorf("%w: %s", apperrors.ErrMissingRequiredFile, srcPath)
		}
		if err := copyFile(srcPath, filepath.Join(opts.StagingDir, src)); err != nil {
			return false, err
		}
	}

	functionDeps, layerDeps := p.manifest.DependenciesFor(opts.Variant)
	if err := p.installer.Install(ctx, opts.StagingDir, functionDeps); err != nil {
		return false, err
	}
	if err := Prune(opts.StagingDir); err != nil {
		return false, err
	}

	// The archive must contain the designated handler entry point.
	if _, err := os.Stat(filepath.Join(opts.StagingDir, p.manifest.Handler)); err != nil {
		return false, fmt.Errorf("%w: handler %s missing from staging dir", apperrors.ErrMissingRequiredFile, p.manifest.Handler)
	}

	if err := writeArchive(opts.StagingDir, opts.OutputPath); err != nil {
		return false, err
	}

	if len(layerDeps) > 0 {
		if opts.LayerOutputPath == "" {
			return false, fmt.Errorf("separate layer requested but no layer output path given")
		}
		if err := p.buildLayer(ctx, opts, layerDeps); err != nil {
			return false, err
		}
	}

	if err := os.WriteFile(hashPath, []byte(hash+"\n"), 0o644); err != nil {
		return false, fmt.Errorf("failed to record content hash: %w", err)
	}

	logger.Info().
		Str("artifact", opts.OutputPath).
		Str("variant", string(opts.Variant)).
		Str("hash", hash[:12]).
		Msg("Artifact built")
	return true, nil
}

// buildLayer assembles the heavy-dependency layer archive. Lambda layers
// expect Python packages under python/.
func (p *Packager) buildLayer(ctx context.Context, opts Options, deps []string) error {
	layerStaging := opts.StagingDir + "-layer"
	if err := os.RemoveAll(layerStaging); err != nil {
		return fmt.Errorf("failed to clear layer staging dir: %w", err)
	}
	target := filepath.Join(layerStaging, "python")
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("failed to create layer staging dir: %w", err)
	}

	if err := p.installer.Install(ctx, target, deps); err != nil {
		return err
	}
	if err := Prune(layerStaging); err != nil {
		return err
	}
	return writeArchive(layerStaging, opts.LayerOutputPath)
}

// contentHash hashes the manifest's source files (sorted path + content)
// together with the variant and the dependency sets it selects, so an
// unchanged input set yields an unchanged hash and a different variant
// always forces a rebuild.
func (p *Packager) contentHash(variant Variant) (string, error) {
	sources := append([]string{}, p.manifest.Sources...)
	sort.Strings(sources)

	h := sha256.New()
	for _, src := range sources {
		srcPath := p.manifest.SourcePath(src)
		data, err := os.ReadFile(srcPath)
		if err != nil {
			return "", fmt.Errorf("%w: %s", apperrors.ErrMissingRequiredFile, srcPath)
		}
		fmt.Fprintf(h, "%s\n", src)
		h.Write(data)
	}

	functionDeps, layerDeps := p.manifest.DependenciesFor(variant)
	fmt.Fprintf(h, "variant %s\n", variant)
	for _, dep := range functionDeps {
		fmt.Fprintf(h, "dep %s\n", dep)
	}
	for _, dep := range layerDeps {
		fmt.Fprintf(h, "layer %s\n", dep)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Prune removes every path in dir matching the build-cache, bytecode, test,
// and documentation denylist, even inside installed dependencies.
func Prune(dir string) error {
	globs := make([]glob.Glob, 0, len(denyFilePatterns))
	for _, pattern := range denyFilePatterns {
		globs = append(globs, glob.MustCompile(pattern))
	}

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil // removed with a denied parent dir
			}
			return err
		}
		if path == dir {
			return nil
		}

		base := filepath.Base(path)
		if info.IsDir() {
			_, denied := denyDirs[base]
			if denied || strings.HasSuffix(base, ".dist-info") {
				if err := os.RemoveAll(path); err != nil {
					return fmt.Errorf("failed to prune %s: %w", path, err)
				}
				return filepath.SkipDir
			}
			return nil
		}

		for _, g := range globs {
			if g.Match(base) {
				if err := os.Remove(path); err != nil {
					return fmt.Errorf("failed to prune %s: %w", path, err)
				}
				return nil
			}
		}
		return nil
	})
}

// writeArchive zips the staging directory with a sorted walk and fixed
// timestamps, so identical inputs produce byte-identical archives.
func writeArchive(stagingDir, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	var files []string
	err := filepath.Walk(stagingDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk staging dir: %w", err)
	}
	sort.Strings(files)

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create archive %s: %w", outputPath, err)
	}
	defer out.Close()

	w := zip.NewWriter(out)
	for _, path := range files {
		rel, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return err
		}

		header := &zip.FileHeader{
			Name:   filepath.ToSlash(rel),
			Method: zip.Deflate,
		}
		header.SetMode(0o644)

		entry, err := w.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", rel, err)
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(entry, f); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s to archive: %w", rel, err)
		}
		f.Close()
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create dir for %s: %w", dst, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}
