package jsonlstore

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// watchFiles polls the files of watched collections and notifies the feed
// when one changes on disk, so writes from another process reach live
// queries.
func (s *Store) watchFiles() {
	defer close(s.done)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	seen := make(map[string]fileStamp)
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			for _, collection := range s.feed.Collections() {
				stamp, err := stat(s.Path(collection))
				if err != nil {
					s.logger.Warn("stat collection file failed",
						slog.String("collection", collection),
						slog.Any("error", err))
					continue
				}
				prev, ok := seen[collection]
				seen[collection] = stamp
				if ok && prev != stamp {
					s.feed.Notify(context.Background(), collection)
				}
			}
		}
	}
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

func stat(path string) (fileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileStamp{}, nil
		}
		return fileStamp{}, err
	}
	return fileStamp{size: info.Size(), modTime: info.ModTime()}, nil
}
