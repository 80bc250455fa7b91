package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/BartekS5/bigsitemap/pkg/models"
)

// LockFileName is created in the output directory for the duration of a run.
const LockFileName = "generator.lock"

// Lock is an exclusive claim on an output directory.
type Lock struct {
	path  string
	RunID string
}

// AcquireLock creates the lock file in dir. An existing lock file means
// another run owns the directory and yields ErrLockContention.
func AcquireLock(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, LockFileName)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			holder, _ := os.ReadFile(path)
			return nil, fmt.Errorf("%w: %s held by %s", models.ErrLockContention, path, strings.TrimSpace(string(holder)))
		}
		return nil, fmt.Errorf("creating lock file: %w", err)
	}

	l := &Lock{path: path, RunID: uuid.NewString()}
	_, werr := fmt.Fprintf(f, "%s %d\n", l.RunID, os.Getpid())
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing lock file: %w", werr)
	}
	return l, nil
}

// Release removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}
