package instagram

import "context"

type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaImage MediaKind = "image"
)

type MediaFile struct {
	FilePath  string    `json:"filePath"`
	Type      MediaKind `json:"type"`
	Size      int64     `json:"size"`
	HumanSize string    `json:"human_size"`
}

type DownloadResult struct {
	Files []MediaFile `json:"files"`
	Count int         `json:"count"`
	Types []MediaKind `json:"types"`
}

type DownloadRequest struct {
	URL string `json:"url" form:"url"`
}

// Downloader fetches every media item of a post into local files and returns
// their paths. Partial output is removed when it fails.
type Downloader interface {
	Download(ctx context.Context, url string) ([]string, error)
}

type IInstagramUsecase interface {
	Download(ctx context.Context, request DownloadRequest) (DownloadResult, error)
	// Cleanup removes the files of a result once they were delivered.
	Cleanup(result DownloadResult)
}
