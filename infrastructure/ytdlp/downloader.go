package ytdlp

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Runner executes the binary. It returns once the process has exited.
type Runner func(ctx context.Context, name string, args ...string) error

type Config struct {
	Binary  string
	TempDir string
	Runner  Runner
	Now     func() time.Time
}

// Downloader saves Instagram posts with yt-dlp. Every call writes files named
// instagram_<ts>_<id>_<n>.<ext> into the temp dir.
type Downloader struct {
	cfg Config
}

func New(cfg Config) *Downloader {
	if cfg.Binary == "" {
		cfg.Binary = "yt-dlp"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Runner == nil {
		cfg.Runner = execRunner
	}
	return &Downloader{cfg: cfg}
}

func (d *Downloader) Download(ctx context.Context, url string) ([]string, error) {
	dir, err := filepath.Abs(d.cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve temp dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	prefix := fmt.Sprintf("instagram_%d_%s_", d.cfg.Now().UnixMilli(), uuid.NewString()[:8])
	template := filepath.Join(dir, prefix+"%(autonumber)s.%(ext)s")

	logrus.Info("[INSTAGRAM] Starting download...")
	err = d.cfg.Runner(ctx, d.cfg.Binary,
		"--no-warnings",
		"--quiet",
		"--no-playlist",
		"-o", template,
		url,
	)

	files, listErr := filesWithPrefix(dir, prefix)
	if err != nil {
		RemoveAll(files)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if listErr != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", listErr)
	}

	logrus.Infof("[INSTAGRAM] Download finished, %d file(s)", len(files))
	return files, nil
}

func filesWithPrefix(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// RemoveAll deletes files, logging failures.
func RemoveAll(files []string) {
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			logrus.Errorf("[INSTAGRAM] Failed to remove file: %v", err)
		}
	}
}

func execRunner(ctx context.Context, name string, args ...string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s is not installed: %w", name, err)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%v, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
