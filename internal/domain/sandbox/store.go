// Package sandbox confines file reads and writes to a single data directory.
package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scenariokit/harness/internal/domain/fault"
)

// ErrExists is returned by Save when overwrite is false and the target exists.
var ErrExists = errors.New("sandbox: file already exists")

// Store resolves every path against a canonical root and refuses anything
// that would land outside it.
type Store struct {
	root string
}

// New creates root if needed and canonicalizes it.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("sandbox: empty root")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	return &Store{root: canon}, nil
}

func (s *Store) Root() string { return s.root }

// Resolve maps a relative name to an absolute path inside the root. Absolute
// names, ".." traversal and symlinks pointing outside all fail with
// fault.SecurityViolation.
func (s *Store) Resolve(name string) (string, error) {
	if name == "" {
		return "", &fault.SecurityViolation{Path: name, Root: s.root}
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) || filepath.VolumeName(name) != "" {
		return "", &fault.SecurityViolation{Path: name, Root: s.root}
	}

	joined := filepath.Join(s.root, filepath.FromSlash(name))
	if !s.within(joined) {
		return "", &fault.SecurityViolation{Path: name, Root: s.root}
	}

	canon, err := canonical(joined)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", name, err)
	}
	if !s.within(canon) || canon == s.root {
		return "", &fault.SecurityViolation{Path: name, Root: s.root}
	}
	return canon, nil
}

func (s *Store) within(p string) bool {
	rel, err := filepath.Rel(s.root, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// maxLinkHops bounds how many dangling symlinks canonical follows.
const maxLinkHops = 40

// canonical resolves symlinks on the deepest existing ancestor of p and
// re-appends the components that do not exist yet. A component that exists
// only as a dangling symlink is replaced by its target, so the result names
// the file a write would really create.
func canonical(p string) (string, error) {
	var tail []string
	cur := p
	hops := 0
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}

		if fi, lerr := os.Lstat(cur); lerr == nil && fi.Mode()&fs.ModeSymlink != 0 {
			if hops++; hops > maxLinkHops {
				return "", fmt.Errorf("too many links resolving %s", p)
			}
			target, err := os.Readlink(cur)
			if err != nil {
				return "", err
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(cur), target)
			}
			cur = filepath.Clean(target)
			continue
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}

// Save writes content to name, creating parent directories. It returns the
// path relative to the root using forward slashes.
func (s *Store) Save(name, content string, overwrite bool) (string, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create parent of %q: %w", name, err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := s.open(path, flags)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrExists, name)
		}
		return "", fmt.Errorf("write %q: %w", name, err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", fmt.Errorf("write %q: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write %q: %w", name, err)
	}
	return s.rel(path), nil
}

// open opens an already resolved path through an os.Root, which refuses to
// follow a link out of the data dir even if one appeared after Resolve.
func (s *Store) open(path string, flags int) (*os.File, error) {
	r, err := os.OpenRoot(s.root)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return nil, err
	}
	return r.OpenFile(rel, flags, 0644)
}

// Read returns the content of name.
func (s *Store) Read(name string) (string, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return "", err
	}
	f, err := s.open(path, os.O_RDONLY)
	if err != nil {
		return "", fmt.Errorf("read %q: %w", name, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read %q: %w", name, err)
	}
	return string(data), nil
}

// SaveText stores raw text under name unchanged.
func (s *Store) SaveText(name, content string, overwrite bool) (string, error) {
	return s.Save(name, content, overwrite)
}

// SaveJSON marshals v and stores it under name with a .json extension.
func (s *Store) SaveJSON(name string, v any, pretty, overwrite bool) (string, error) {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", fmt.Errorf("encode %q: %w", name, err)
	}
	return s.Save(withExt(name, ".json"), string(data), overwrite)
}

// SaveXML stores already serialized XML under name with a .xml extension.
func (s *Store) SaveXML(name, xml string, overwrite bool) (string, error) {
	return s.Save(withExt(name, ".xml"), xml, overwrite)
}

// List returns the files below dir, relative to the root.
func (s *Store) List(dir string) ([]string, error) {
	base := s.root
	if dir != "" && dir != "." {
		p, err := s.Resolve(dir)
		if err != nil {
			return nil, err
		}
		base = p
	}

	var out []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			out = append(out, s.rel(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", dir, err)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) rel(path string) string {
	r, err := filepath.Rel(s.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(r)
}

func withExt(name, ext string) string {
	if strings.EqualFold(filepath.Ext(name), ext) {
		return name
	}
	return name + ext
}
