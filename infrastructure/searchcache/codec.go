package searchcache

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/AzielCF/az-sticker/domains/pinterest"
)

// wireEntry is the on-disk shape shared with the existing pinterest-cache.json
// files: {"timestamp": <ms>, "results": [...], "currentIndex": <n>}.
type wireEntry struct {
	Timestamp    int64                    `json:"timestamp"`
	Results      []pinterest.ResultRecord `json:"results"`
	CurrentIndex int                      `json:"currentIndex"`
}

func encodeEntries(entries pinterest.Entries) ([]byte, error) {
	wire := make(map[string]wireEntry, len(entries))
	for key, e := range entries {
		if len(e.Results) == 0 {
			continue
		}
		wire[key] = wireEntry{
			Timestamp:    e.CreatedAt.UnixMilli(),
			Results:      e.Results,
			CurrentIndex: e.Cursor,
		}
	}
	return json.MarshalIndent(wire, "", "  ")
}

// decodeEntries parses a stored map. Entries without usable results are
// dropped and out-of-range cursors restart at zero.
func decodeEntries(data []byte) (pinterest.Entries, error) {
	entries := make(pinterest.Entries)
	if len(strings.TrimSpace(string(data))) == 0 {
		return entries, nil
	}

	var wire map[string]wireEntry
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}

	for key, w := range wire {
		results := make([]pinterest.ResultRecord, 0, len(w.Results))
		for _, r := range w.Results {
			if strings.TrimSpace(r.Location) == "" {
				continue
			}
			if r.Kind == "" {
				r.Kind = pinterest.KindImage
			}
			results = append(results, r)
		}
		if len(results) == 0 {
			continue
		}

		cursor := w.CurrentIndex
		if cursor < 0 || cursor >= len(results) {
			cursor = 0
		}

		entries[key] = pinterest.CacheEntry{
			Query:     key,
			CreatedAt: time.UnixMilli(w.Timestamp),
			Results:   results,
			Cursor:    cursor,
		}
	}
	return entries, nil
}
