package gallerydl

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	domainPinterest "github.com/AzielCF/az-sticker/domains/pinterest"
)

const searchURL = "https://www.pinterest.com/search/pins/"

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Runner executes the binary. It returns once the process has exited.
type Runner func(ctx context.Context, name string, args ...string) error

type Config struct {
	Binary  string
	TempDir string
	// GifOnly appends QuerySuffix to the query and keeps only .gif outputs.
	GifOnly     bool
	QuerySuffix string
	Runner      Runner
	Now         func() time.Time
}

// Tool downloads Pinterest search results with gallery-dl into a fresh run
// directory per search.
type Tool struct {
	cfg Config
	tag string
}

func New(cfg Config) *Tool {
	if cfg.Binary == "" {
		cfg.Binary = "gallery-dl"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	tag := "[PINTEREST]"
	if cfg.GifOnly {
		tag = "[PINTEREST-GIF]"
	}
	if cfg.Runner == nil {
		cfg.Runner = execRunner(tag)
	}
	return &Tool{cfg: cfg, tag: tag}
}

func (t *Tool) runDirPrefix() string {
	if t.cfg.GifOnly {
		return "pinterest_gif_"
	}
	return "pinterest_"
}

func (t *Tool) Search(ctx context.Context, query string, maxResults int) ([]domainPinterest.ResultRecord, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	searchQuery := strings.TrimSpace(query)
	if t.cfg.GifOnly && t.cfg.QuerySuffix != "" {
		searchQuery = searchQuery + " " + t.cfg.QuerySuffix
	}

	runDir, err := t.newRunDir()
	if err != nil {
		return nil, err
	}

	args := []string{
		"--range", fmt.Sprintf("1-%d", maxResults),
		"--no-mtime",
		"-D", runDir,
		SearchURL(searchQuery),
	}
	logrus.Debugf("%s Running %s %s", t.tag, t.cfg.Binary, strings.Join(args, " "))

	if err := t.cfg.Runner(ctx, t.cfg.Binary, args...); err != nil {
		_ = os.RemoveAll(runDir)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", domainPinterest.ErrExternalToolFailure, err)
	}

	records, err := CollectArtifacts(runDir, t.cfg.GifOnly)
	if err != nil {
		_ = os.RemoveAll(runDir)
		return nil, fmt.Errorf("%w: scanning %s: %v", domainPinterest.ErrExternalToolFailure, runDir, err)
	}
	if len(records) == 0 {
		_ = os.RemoveAll(runDir)
		return nil, nil
	}
	if len(records) > maxResults {
		records = records[:maxResults]
	}

	logrus.Infof("%s %d file(s) found for %q", t.tag, len(records), searchQuery)
	return records, nil
}

func (t *Tool) newRunDir() (string, error) {
	name := fmt.Sprintf("%s%d_%s", t.runDirPrefix(), t.cfg.Now().UnixMilli(), uuid.NewString()[:8])
	dir, err := filepath.Abs(filepath.Join(t.cfg.TempDir, name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve run dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run dir: %w", err)
	}
	return dir, nil
}

// SearchURL builds the Pinterest pin search address for query.
func SearchURL(query string) string {
	return searchURL + "?" + url.Values{"q": {query}}.Encode()
}

// CollectArtifacts walks dir once and returns the downloaded media in path
// order. In gifOnly mode only .gif files are kept.
func CollectArtifacts(dir string, gifOnly bool) ([]domainPinterest.ResultRecord, error) {
	var records []domainPinterest.ResultRecord
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !imageExtensions[ext] {
			return nil
		}
		if gifOnly {
			if ext != ".gif" {
				return nil
			}
			records = append(records, domainPinterest.ResultRecord{Location: path, Kind: domainPinterest.KindGif})
			return nil
		}
		records = append(records, domainPinterest.ResultRecord{Location: path, Kind: KindFor(ext)})
		return nil
	})
	sort.Slice(records, func(i, j int) bool {
		return records[i].Location < records[j].Location
	})
	return records, err
}

// KindFor maps a file extension to the result kind of the plain search.
func KindFor(ext string) domainPinterest.ResultKind {
	switch strings.ToLower(ext) {
	case ".gif", ".webp":
		return domainPinterest.KindGif
	default:
		return domainPinterest.KindImage
	}
}

func execRunner(tag string) Runner {
	return func(ctx context.Context, name string, args ...string) error {
		if _, err := exec.LookPath(name); err != nil {
			return fmt.Errorf("%s is not installed (pip install gallery-dl): %w", name, err)
		}

		cmd := exec.CommandContext(ctx, name, args...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%v, stderr: %s", err, strings.TrimSpace(stderr.String()))
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" && !strings.Contains(strings.ToLower(msg), "warning") {
			logrus.Warnf("%s %s stderr: %s", tag, name, msg)
		}
		return nil
	}
}
