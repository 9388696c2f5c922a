package extractor

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/flate"

	"github.com/GriffinCanCode/BundleOS/backend/internal/shared/types"
)

// Extractor reads entries out of one bundle package archive.
type Extractor struct {
	path   string
	reader *zip.ReadCloser
}

// Open validates that path is a zip container and opens it for reading.
func Open(path string) (*Extractor, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: detect %s: %v", types.ErrBadProfile, path, err)
	}
	if !mt.Is("application/zip") && !mt.Is("application/java-archive") {
		return nil, fmt.Errorf("%w: %s is not a package archive (%s)", types.ErrBadProfile, path, mt.String())
	}

	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", types.ErrBadProfile, path, err)
	}
	r.RegisterDecompressor(zip.Deflate, func(in io.Reader) io.ReadCloser {
		return flate.NewReader(in)
	})

	return &Extractor{path: path, reader: r}, nil
}

// Close releases the underlying archive.
func (e *Extractor) Close() error {
	return e.reader.Close()
}

// Path returns the archive path this extractor was opened on.
func (e *Extractor) Path() string {
	return e.path
}

// HasEntry reports whether the archive contains a file with the exact name.
func (e *Extractor) HasEntry(name string) bool {
	for _, f := range e.reader.File {
		if f.Name == name {
			return true
		}
	}
	return false
}

// HasDir reports whether any entry lives under the given directory prefix.
func (e *Extractor) HasDir(dir string) bool {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	for _, f := range e.reader.File {
		if strings.HasPrefix(f.Name, prefix) {
			return true
		}
	}
	return false
}

// ReadEntry returns the full contents of one named entry.
func (e *Extractor) ReadEntry(name string) ([]byte, error) {
	for _, f := range e.reader.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open entry %s: %v", types.ErrBadProfile, name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: read entry %s: %v", types.ErrBadProfile, name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: entry %s not found in %s", types.ErrBadProfile, name, e.path)
}

// ExtractTo unpacks every entry into destDir, preserving the archive's
// relative layout. Entry names that escape destDir are rejected.
func (e *Extractor) ExtractTo(destDir string) error {
	for _, f := range e.reader.File {
		if err := e.extractOne(f, f.Name, destDir); err != nil {
			return err
		}
	}
	return nil
}

// ExtractSubtree unpacks only the entries under srcDir, stripping the
// prefix, so libs/arm64-v8a/liba.so lands as <destDir>/liba.so.
func (e *Extractor) ExtractSubtree(srcDir, destDir string) error {
	prefix := strings.TrimSuffix(srcDir, "/") + "/"
	for _, f := range e.reader.File {
		if !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		rel := strings.TrimPrefix(f.Name, prefix)
		if rel == "" {
			continue
		}
		if err := e.extractOne(f, rel, destDir); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extractor) extractOne(f *zip.File, rel, destDir string) error {
	target := filepath.Join(destDir, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("%w: entry %s escapes destination", types.ErrBadProfile, f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open entry %s: %v", types.ErrBadProfile, f.Name, err)
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		os.Remove(target)
		return err
	}
	return out.Close()
}
