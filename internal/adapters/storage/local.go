package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/elbow/pkg/metrics"
)

// Local is a Storage rooted at a local directory. It stands in for HDFS when
// the trials run in process.
type Local struct {
	root string
}

// NewLocal creates root if needed.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return &Local{root: root}, nil
}

// Path maps a remote path into the root.
func (l *Local) Path(remote string) string {
	return filepath.Join(l.root, filepath.FromSlash(remote))
}

func (l *Local) Put(ctx context.Context, local, remote string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := copyFile(local, l.Path(remote)); err != nil {
		return fmt.Errorf("upload %s to %s: %w", local, remote, err)
	}
	metrics.RecordStorageTransfer("upload", fileSize(local))
	return nil
}

func (l *Local) Get(ctx context.Context, remote, local string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src := l.Path(remote)
	fi, err := os.Stat(src)
	if err != nil {
		if notFound(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, remote)
		}
		return err
	}
	if fi.IsDir() {
		if err := os.RemoveAll(local); err != nil {
			return err
		}
		if err := os.CopyFS(local, os.DirFS(src)); err != nil {
			return fmt.Errorf("download tree %s: %w", remote, err)
		}
	} else if err := copyFile(src, local); err != nil {
		return fmt.Errorf("download %s: %w", remote, err)
	}
	metrics.RecordStorageTransfer("download", treeSize(local))
	return nil
}

func (l *Local) Exists(ctx context.Context, remote string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(l.Path(remote))
	switch {
	case err == nil:
		return true, nil
	case notFound(err):
		return false, nil
	}
	return false, err
}

func (l *Local) Remove(ctx context.Context, remote string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.RemoveAll(l.Path(remote))
}

func (l *Local) Close() error { return nil }
