// Package watchlist reads and rewrites the plain-text list of domains to buy.
package watchlist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File is a watch list stored one entry per line.
type File struct {
	Path string
}

// Load returns the entries in file order. Lines are kept verbatim, blank
// ones included; only the final newline is dropped.
func (f File) Load() ([]string, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("watch list: %w", err)
	}
	s := strings.ReplaceAll(string(b), "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil, nil
	}
	return strings.Split(s, "\n"), nil
}

// Save replaces the file with entries, newline terminated. The old content
// stays in place until the new one is fully written.
func (f File) Save(entries []string) error {
	dir := filepath.Dir(f.Path)
	mode := os.FileMode(0o644)
	if st, err := os.Stat(f.Path); err == nil {
		mode = st.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+"-*")
	if err != nil {
		return fmt.Errorf("watch list: %w", err)
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e)
		b.WriteByte('\n')
	}
	_, werr := tmp.WriteString(b.String())
	serr := tmp.Sync()
	cerr := tmp.Close()
	if err := errors.Join(werr, serr, cerr); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("watch list: %w", err)
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("watch list: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("watch list: %w", err)
	}
	return nil
}
