package cache

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const fileSuffix = ".entry"

type fileHeader struct {
	Expires int64    `json:"expires,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// FileBackend stores one file per entry below <directory>/<cache identifier>.
// Each file starts with a one-line JSON header holding expiry and tags.
type FileBackend struct {
	dir             string
	defaultLifetime time.Duration
	now             func() time.Time
}

func NewFileBackend(directory, cacheID string, defaultLifetime time.Duration) (*FileBackend, error) {
	if !ValidIdentifier(cacheID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, cacheID)
	}
	dir := filepath.Join(directory, cacheID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: creating %s: %w", dir, err)
	}
	return &FileBackend{dir: dir, defaultLifetime: defaultLifetime, now: time.Now}, nil
}

func (b *FileBackend) Dir() string {
	return b.dir
}

func (b *FileBackend) path(entryID string) string {
	return filepath.Join(b.dir, entryID+fileSuffix)
}

func (b *FileBackend) Set(entryID string, data []byte, tags []string, lifetime time.Duration) error {
	if err := checkEntry(entryID, tags); err != nil {
		return err
	}
	header, err := json.Marshal(fileHeader{Expires: expiry(b.now(), lifetime, b.defaultLifetime), Tags: tags})
	if err != nil {
		return err
	}
	buf := make([]byte, 0, len(header)+1+len(data))
	buf = append(buf, header...)
	buf = append(buf, '\n')
	buf = append(buf, data...)
	return WriteFileAtomic(b.path(entryID), buf, 0o644)
}

func (b *FileBackend) read(path string) (fileHeader, []byte, error) {
	var h fileHeader
	raw, err := os.ReadFile(path)
	if err != nil {
		return h, nil, err
	}
	line, rest, ok := bytes.Cut(raw, []byte{'\n'})
	if !ok {
		return h, nil, fmt.Errorf("cache: corrupt entry %s", path)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, nil, fmt.Errorf("cache: corrupt entry %s: %w", path, err)
	}
	return h, rest, nil
}

func (b *FileBackend) Get(entryID string) ([]byte, bool, error) {
	if !ValidIdentifier(entryID) {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidIdentifier, entryID)
	}
	h, data, err := b.read(b.path(entryID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if expired(b.now(), h.Expires) {
		return nil, false, nil
	}
	return data, true, nil
}

func (b *FileBackend) Has(entryID string) (bool, error) {
	_, ok, err := b.Get(entryID)
	return ok, err
}

func (b *FileBackend) Remove(entryID string) (bool, error) {
	if !ValidIdentifier(entryID) {
		return false, fmt.Errorf("%w: %q", ErrInvalidIdentifier, entryID)
	}
	err := os.Remove(b.path(entryID))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (b *FileBackend) entries() ([]string, error) {
	des, err := os.ReadDir(b.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, de := range des {
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileSuffix) {
			continue
		}
		paths = append(paths, filepath.Join(b.dir, de.Name()))
	}
	return paths, nil
}

func (b *FileBackend) Flush() error {
	paths, err := b.entries()
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *FileBackend) FlushByTag(tag string) (int, error) {
	paths, err := b.entries()
	if err != nil {
		return 0, err
	}
	n := 0
	var errs []error
	for _, p := range paths {
		h, err := b.readHeader(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !slices.Contains(h.Tags, tag) {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

func (b *FileBackend) readHeader(path string) (fileHeader, error) {
	var h fileHeader
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	line, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("cache: corrupt entry %s: %w", path, err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("cache: corrupt entry %s: %w", path, err)
	}
	return h, nil
}
