package local

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/Abraxas-365/coursekb/storage"
)

// Store keeps objects as files under a root directory, the layout of the UserUploads folder
type Store struct {
	root string
}

var _ storage.DataStore = (*Store)(nil)

// NewStore creates root if needed
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, storage.NewStorageError("New", root, err, storage.ErrCodeInternal, "failed to create upload directory")
	}
	return &Store{root: root}, nil
}

// Root is the directory objects live in
func (s *Store) Root() string {
	return s.root
}

// Path maps a key to its file, rejecting keys with ".." segments. Dots inside a
// name ("week1..final.pdf") are fine.
func (s *Store) Path(key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if clean == string(filepath.Separator) || slices.Contains(strings.FieldsFunc(key, isSeparator), "..") {
		return "", storage.NewStorageError("Path", key, nil, storage.ErrCodeInvalidArgument, "invalid key")
	}
	return filepath.Join(s.root, clean), nil
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

func (s *Store) Put(ctx context.Context, key string, data io.Reader, _ ...storage.PutOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return storage.NewStorageError("Put", key, err, storage.ErrCodeInternal, "failed to create directory")
	}

	// write to a temp file and rename so readers never see partial content
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return storage.NewStorageError("Put", key, err, storage.ErrCodeInternal, "failed to create file")
	}
	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return storage.NewStorageError("Put", key, err, storage.ErrCodeInternal, "failed to write file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return storage.NewStorageError("Put", key, err, storage.ErrCodeInternal, "failed to write file")
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return storage.NewStorageError("Put", key, err, storage.ErrCodeInternal, "failed to write file")
	}
	return nil
}

func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.NotFound("Get", key)
	}
	if err != nil {
		return nil, storage.NewStorageError("Get", key, err, permissionCode(err), "failed to open file")
	}
	return f, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	p, err := s.Path(key)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return storage.NotFound("Delete", key)
	}
	if err != nil {
		return storage.NewStorageError("Delete", key, err, permissionCode(err), "failed to remove file")
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var objects []storage.ObjectInfo
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, storage.ObjectInfo{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, storage.NewStorageError("List", prefix, err, storage.ErrCodeInternal, "failed to list files")
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.Path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, storage.NewStorageError("Exists", key, err, permissionCode(err), "failed to stat file")
	}
	return true, nil
}

func permissionCode(err error) string {
	if errors.Is(err, fs.ErrPermission) {
		return storage.ErrCodePermissionDenied
	}
	return storage.ErrCodeInternal
}
