package api

import (
	"errors"
	"path/filepath"
)

var (
	errPathInputDisabled = errors.New("path input is disabled; submit a dataset_id")
	errOutsideInputDir   = errors.New("path must name a file inside the input directory")
)

// resolveInput maps a requested path onto a file under root. Relative paths
// are taken from root; absolute ones must already point inside it. A
// symlink under root that leads out of it is rejected too.
func resolveInput(root, p string) (string, error) {
	if root == "" {
		return "", errPathInputDisabled
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}

	rel := p
	if filepath.IsAbs(p) {
		if rel, err = filepath.Rel(absRoot, filepath.Clean(p)); err != nil {
			return "", errOutsideInputDir
		}
	}
	rel = filepath.Clean(rel)
	if rel == "." || !filepath.IsLocal(rel) {
		return "", errOutsideInputDir
	}
	full := filepath.Join(absRoot, rel)

	real, err := filepath.EvalSymlinks(full)
	if err != nil {
		// nothing on disk yet: the loader reports the missing file
		return full, nil
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		realRoot = absRoot
	}
	if r, err := filepath.Rel(realRoot, real); err != nil || !filepath.IsLocal(r) {
		return "", errOutsideInputDir
	}
	return full, nil
}
