// Package storage moves dataset splits and model artifacts between the local
// filesystem and the store the cluster reads from.
package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Storage copies files to and from a remote tree. Remote paths are slash
// separated and absolute within the store.
type Storage interface {
	// Put uploads a local file, creating parent directories and replacing
	// any existing file.
	Put(ctx context.Context, local, remote string) error
	// Get downloads a remote file or directory tree to local.
	Get(ctx context.Context, remote, local string) error
	Exists(ctx context.Context, remote string) (bool, error)
	// Remove deletes remote recursively. Missing paths are not an error.
	Remove(ctx context.Context, remote string) error
	Close() error
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func treeSize(root string) int64 {
	var n int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			n += fi.Size()
		}
		return nil
	})
	return n
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func notFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
