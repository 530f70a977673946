// Package filex keeps attachment files on the local disk until they are
// uploaded.
package filex

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// EnsureDir creates dir and its parents if needed and returns its absolute path.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// Reader resolves attachment local URIs against a root directory. Absolute
// URIs are read as is.
type Reader struct {
	root string
}

func NewReader(root string) *Reader {
	return &Reader{root: root}
}

func (r *Reader) path(localURI string) string {
	if r.root == "" || filepath.IsAbs(localURI) {
		return localURI
	}
	return filepath.Join(r.root, localURI)
}

func (r *Reader) ReadAttachment(localURI string) ([]byte, error) {
	data, err := os.ReadFile(r.path(localURI))
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	return data, nil
}

// Import copies src into the root directory under a fresh name that keeps
// the extension. It returns the local URI relative to the root and the
// number of bytes copied.
func (r *Reader) Import(src string) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	name := uuid.NewString() + filepath.Ext(src)
	out, err := os.OpenFile(r.path(name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o660)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", name, err)
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(r.path(name))
		return "", 0, fmt.Errorf("copy %s: %w", src, err)
	}
	return name, n, nil
}

// Remove deletes an imported attachment. A missing file is not an error.
func (r *Reader) Remove(localURI string) error {
	err := os.Remove(r.path(localURI))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove attachment: %w", err)
	}
	return nil
}
