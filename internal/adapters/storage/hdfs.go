package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/colinmarc/hdfs/v2"

	"github.com/okian/elbow/pkg/logger"
	"github.com/okian/elbow/pkg/metrics"
)

// HDFS is a Storage backed by a Hadoop namenode.
type HDFS struct {
	client *hdfs.Client
	log    logger.Logger
}

// HDFSOption configures an HDFS store.
type HDFSOption func(*HDFS)

// WithHDFSLogger sets the store's logger.
func WithHDFSLogger(l logger.Logger) HDFSOption {
	return func(h *HDFS) {
		h.log = l
	}
}

// NewHDFS connects to the namenodes as user.
func NewHDFS(namenodes []string, user string, opts ...HDFSOption) (*HDFS, error) {
	client, err := hdfs.NewClient(hdfs.ClientOptions{
		Addresses: namenodes,
		User:      user,
	})
	if err != nil {
		return nil, fmt.Errorf("connect hdfs %v: %w", namenodes, err)
	}
	h := &HDFS{client: client, log: logger.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *HDFS) Put(ctx context.Context, local, remote string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := h.client.MkdirAll(path.Dir(remote), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path.Dir(remote), err)
	}
	if err := h.client.Remove(remote); err != nil && !notFound(err) {
		return fmt.Errorf("replace %s: %w", remote, err)
	}
	if err := h.client.CopyToRemote(local, remote); err != nil {
		return fmt.Errorf("upload %s to %s: %w", local, remote, err)
	}
	n := fileSize(local)
	metrics.RecordStorageTransfer("upload", n)
	h.log.Debug(ctx, "uploaded to hdfs",
		logger.String("local", local),
		logger.String("remote", remote),
		logger.Any("bytes", n),
	)
	return nil
}

func (h *HDFS) Get(ctx context.Context, remote, local string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fi, err := h.client.Stat(remote)
	if err != nil {
		if notFound(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, remote)
		}
		return fmt.Errorf("stat %s: %w", remote, err)
	}

	if !fi.IsDir() {
		if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
			return err
		}
		if err := h.client.CopyToLocal(remote, local); err != nil {
			return fmt.Errorf("download %s: %w", remote, err)
		}
	} else {
		err = h.client.Walk(remote, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			rel, err := filepath.Rel(remote, p)
			if err != nil {
				return err
			}
			dst := filepath.Join(local, rel)
			if info.IsDir() {
				return os.MkdirAll(dst, 0o755)
			}
			return h.client.CopyToLocal(p, dst)
		})
		if err != nil {
			return fmt.Errorf("download tree %s: %w", remote, err)
		}
	}

	n := treeSize(local)
	metrics.RecordStorageTransfer("download", n)
	h.log.Debug(ctx, "downloaded from hdfs",
		logger.String("remote", remote),
		logger.String("local", local),
		logger.Any("bytes", n),
	)
	return nil
}

func (h *HDFS) Exists(ctx context.Context, remote string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := h.client.Stat(remote)
	switch {
	case err == nil:
		return true, nil
	case notFound(err):
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", remote, err)
}

func (h *HDFS) Remove(ctx context.Context, remote string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := h.client.RemoveAll(remote); err != nil && !notFound(err) {
		return fmt.Errorf("remove %s: %w", remote, err)
	}
	return nil
}

func (h *HDFS) Close() error {
	return h.client.Close()
}
