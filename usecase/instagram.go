package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-sticker/config"
	domainInstagram "github.com/AzielCF/az-sticker/domains/instagram"
	"github.com/AzielCF/az-sticker/infrastructure/ytdlp"
	pkgError "github.com/AzielCF/az-sticker/pkg/error"
	"github.com/AzielCF/az-sticker/pkg/metrics"
	"github.com/AzielCF/az-sticker/validations"
)

type instagramService struct {
	downloader domainInstagram.Downloader
	maxSize    int64
	timeout    time.Duration
	recorder   *metrics.Recorder
}

func NewInstagramService(downloader domainInstagram.Downloader, recorder *metrics.Recorder) domainInstagram.IInstagramUsecase {
	return &instagramService{
		downloader: downloader,
		maxSize:    config.InstagramMaxFileSize,
		timeout:    config.InstagramTimeout,
		recorder:   recorder,
	}
}

func (s *instagramService) Download(ctx context.Context, request domainInstagram.DownloadRequest) (domainInstagram.DownloadResult, error) {
	if err := validations.ValidateInstagramDownload(ctx, &request); err != nil {
		s.recorder.ObserveDownload("invalid")
		return domainInstagram.DownloadResult{}, err
	}

	downloadCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	paths, err := s.downloader.Download(downloadCtx, request.URL)
	if err != nil {
		s.recorder.ObserveDownload("error")
		logrus.WithError(err).Errorf("[INSTAGRAM] Download failed for %s", request.URL)
		if errors.Is(err, context.DeadlineExceeded) {
			return domainInstagram.DownloadResult{}, fmt.Errorf("%w after %s", domainInstagram.ErrDownloadTimeout, s.timeout)
		}
		var generic pkgError.GenericError
		if errors.As(err, &generic) {
			return domainInstagram.DownloadResult{}, err
		}
		return domainInstagram.DownloadResult{}, fmt.Errorf("%w: %v (private or removed post, or yt-dlp missing)", domainInstagram.ErrDownloadFailed, err)
	}

	if len(paths) == 0 {
		s.recorder.ObserveDownload("empty")
		return domainInstagram.DownloadResult{}, domainInstagram.ErrNothingDownloaded
	}

	result := domainInstagram.DownloadResult{Files: make([]domainInstagram.MediaFile, 0, len(paths))}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			ytdlp.RemoveAll(paths)
			s.recorder.ObserveDownload("error")
			return domainInstagram.DownloadResult{}, pkgError.InternalServerError(fmt.Sprintf("failed to stat download: %v", err))
		}

		// One oversized item drops the whole post.
		if info.Size() > s.maxSize {
			ytdlp.RemoveAll(paths)
			s.recorder.ObserveDownload("too_large")
			return domainInstagram.DownloadResult{}, fmt.Errorf("%w: %s, the limit is %s",
				domainInstagram.ErrFileTooLarge, humanize.Bytes(uint64(info.Size())), humanize.Bytes(uint64(s.maxSize)))
		}

		kind := MediaKindFor(path)
		result.Files = append(result.Files, domainInstagram.MediaFile{
			FilePath:  path,
			Type:      kind,
			Size:      info.Size(),
			HumanSize: humanize.Bytes(uint64(info.Size())),
		})
		result.Types = append(result.Types, kind)
	}
	result.Count = len(result.Files)

	s.recorder.ObserveDownload("ok")
	logrus.Infof("[INSTAGRAM] Downloaded %d file(s) from %s", result.Count, request.URL)
	return result, nil
}

func (s *instagramService) Cleanup(result domainInstagram.DownloadResult) {
	paths := make([]string, 0, len(result.Files))
	for _, f := range result.Files {
		paths = append(paths, f.FilePath)
	}
	ytdlp.RemoveAll(paths)
}

func MediaKindFor(path string) domainInstagram.MediaKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".webm", ".mov":
		return domainInstagram.MediaVideo
	default:
		return domainInstagram.MediaImage
	}
}
