package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"BloodLink/pkg/logger"
	"BloodLink/pkg/scheduler"
	stores "BloodLink/pkg/storage"

	"go.uber.org/zap"
)

const archivePrefix = "bloodlink_backup_"

// Backup archives the data directory into BackupPath and optionally uploads
// the archive to an object store.
type Backup struct {
	DataDir    string
	BackupPath string
	Uploader   stores.Store
	// Keep bounds the number of local archives; 0 keeps all.
	Keep int

	now func() time.Time
}

func New(dataDir, backupPath string) *Backup {
	return &Backup{DataDir: dataDir, BackupPath: backupPath, Keep: 14, now: time.Now}
}

// StartBackupScheduler registers b on the shared cron.
func StartBackupScheduler(cr *scheduler.Cron, schedule string, b *Backup) error {
	_, err := cr.AddWithCtx(schedule, func(ctx context.Context) {
		path, err := b.Run(ctx)
		if err != nil {
			logger.Warn("backup failed", zap.Error(err))
			return
		}
		logger.Info("backup completed", zap.String("archive", path))
	})
	return err
}

// Run writes one tar.gz of every .csv and .json file in DataDir.
func (b *Backup) Run(ctx context.Context) (string, error) {
	if err := os.MkdirAll(b.BackupPath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	now := time.Now
	if b.now != nil {
		now = b.now
	}
	name := archivePrefix + now().Format("20060102_150405") + ".tar.gz"
	dst := filepath.Join(b.BackupPath, name)

	if err := b.archive(ctx, dst); err != nil {
		_ = os.Remove(dst)
		return "", err
	}

	if b.Uploader != nil {
		if err := b.upload(ctx, dst, name); err != nil {
			return dst, fmt.Errorf("upload %s: %w", name, err)
		}
		logger.Info("backup uploaded", zap.String("url", b.Uploader.PublicURL(name)))
	}
	b.prune()
	return dst, nil
}

func (b *Backup) archive(ctx context.Context, dst string) error {
	entries, err := os.ReadDir(b.DataDir)
	if err != nil {
		return fmt.Errorf("read data dir: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, ".") || !(strings.HasSuffix(n, ".csv") || strings.HasSuffix(n, ".json")) {
			continue
		}
		if err := addFile(tw, filepath.Join(b.DataDir, n), n); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return f.Sync()
}

// tables are replaced by rename, so an open handle always sees one whole version
func addFile(tw *tar.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening source file: %w", err)
	}
	defer src.Close()
	st, err := src.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(st, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, src)
	return err
}

func (b *Backup) upload(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	return b.Uploader.Write(ctx, key, f, st.Size(), "application/gzip")
}

func (b *Backup) prune() {
	if b.Keep <= 0 {
		return
	}
	matches, err := filepath.Glob(filepath.Join(b.BackupPath, archivePrefix+"*.tar.gz"))
	if err != nil || len(matches) <= b.Keep {
		return
	}
	// timestamped names sort chronologically
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-b.Keep] {
		if err := os.Remove(old); err != nil {
			logger.Warn("remove old backup", zap.String("path", old), zap.Error(err))
		}
	}
}
