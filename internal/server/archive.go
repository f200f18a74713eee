package server

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var errUnsafePath = errors.New("archive entry escapes target directory")

// extractZip unpacks the archive at src into dest. Entries that would land outside
// dest are rejected, as are archives with more than maxFiles files or more than
// maxBytes of uncompressed content.
func extractZip(src, dest string, maxFiles int, maxBytes int64) (int, error) {
	r, err := zip.OpenReader(src)
	if errors.Is(err, zip.ErrInsecurePath) {
		if r != nil {
			r.Close()
		}
		return 0, fmt.Errorf("%w: %w", errUnsafePath, err)
	}
	if err != nil {
		return 0, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return 0, err
	}

	files := 0
	var written int64
	for _, f := range r.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return files, fmt.Errorf("%w: %q", errUnsafePath, f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return files, err
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}

		files++
		if files > maxFiles {
			return files, fmt.Errorf("archive has more than %d files", maxFiles)
		}

		n, err := extractFile(f, target, maxBytes-written)
		if err != nil {
			return files, err
		}
		written += n
	}

	return files, nil
}

func extractFile(f *zip.File, target string, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}

	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(rc, budget+1))
	if err != nil {
		return n, fmt.Errorf("extract %s: %w", f.Name, err)
	}
	if n > budget {
		return n, errors.New("archive content exceeds size limit")
	}
	return n, nil
}
