package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Dir string
}

// Store keeps uploaded images. The returned reference is what gets stored on
// the event and served back to clients.
type Store interface {
	Save(originalName string, r io.Reader) (string, error)
}

// Local stores blobs as files named by upload instant plus the original
// extension, served under /uploads/.
type Local struct {
	dir string
}

func NewLocal(config Config) (*Local, error) {
	dir := config.Dir
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads dir %q: %w", dir, err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Save(originalName string, r io.Reader) (string, error) {
	name := fmt.Sprintf("%d%s", time.Now().UnixNano(), filepath.Ext(originalName))
	f, err := os.Create(filepath.Join(l.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create blob file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("failed to write blob file: %w", err)
	}
	return "uploads/" + name, nil
}

func (l *Local) Dir() string {
	return l.dir
}
