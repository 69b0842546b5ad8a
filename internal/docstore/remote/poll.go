package remote

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/xolan/mondo/internal/dto"
)

// poll long-polls the collection's version and notifies the feed whenever
// it differs from the last one seen. A server restart resets the counter,
// so any difference counts as a change.
func (s *Store) poll(collection string, last uint64) {
	defer s.wg.Done()

	backoff := minBackoff
	for {
		if s.ctx.Err() != nil || s.retire(collection) {
			return
		}

		resp, err := s.fetchVersion(s.ctx, collection, last, s.wait)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Warn("watch poll failed",
				slog.String("collection", collection),
				slog.Duration("retry_in", backoff),
				slog.Any("error", err))
			if !s.sleep(backoff) {
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff

		if resp.Version != last {
			last = resp.Version
			s.feed.Notify(s.ctx, collection)
		}
	}
}

// retire reports whether the loop for collection should stop, removing it
// from the running set under the same lock Watch uses to start one.
func (s *Store) retire(collection string) bool {
	s.pmu.Lock()
	defer s.pmu.Unlock()
	if s.feed.Watching(collection) {
		return false
	}
	delete(s.pollers, collection)
	return true
}

func (s *Store) fetchVersion(ctx context.Context, collection string, after uint64, wait time.Duration) (dto.WatchResponse, error) {
	values := url.Values{}
	values.Set("after", strconv.FormatUint(after, 10))
	values.Set("wait", formatWait(wait))

	ctx, cancel := context.WithTimeout(ctx, wait+s.timeout)
	defer cancel()

	var resp dto.WatchResponse
	err := s.doURL(ctx, http.MethodGet, &url.URL{Path: watchPath(collection), RawQuery: values.Encode()}, nil, &resp)
	return resp, err
}

func (s *Store) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
