package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"khatm_bot/internal/domain/quran"
)

const (
	// MaxPagesPerRead caps a single content request.
	MaxPagesPerRead = 30
	fetchWorkers    = 4
)

var ErrInvalidPageRange = errors.New("invalid page range")

// ReadingService fetches the text of an assigned range.
type ReadingService struct {
	fetcher quran.Fetcher
	logger  *logrus.Entry
}

func NewReadingService(fetcher quran.Fetcher, logger *logrus.Entry) *ReadingService {
	return &ReadingService{fetcher: fetcher, logger: logger}
}

// Pages returns pages start..end in order. Any failed page fails the call.
func (s *ReadingService) Pages(ctx context.Context, start, end int) ([]*quran.Page, error) {
	if start < 1 || end < start || end > quran.MushafPages {
		return nil, fmt.Errorf("%w: %d-%d", ErrInvalidPageRange, start, end)
	}
	if end-start+1 > MaxPagesPerRead {
		return nil, fmt.Errorf("%w: at most %d pages per request", ErrInvalidPageRange, MaxPagesPerRead)
	}

	pages := make([]*quran.Page, end-start+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchWorkers)
	for i := range pages {
		g.Go(func() error {
			p, err := s.fetcher.FetchPage(gctx, start+i)
			if err != nil {
				return err
			}
			pages[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"start_page": start, "end_page": end}).Error("Failed to fetch page content")
		return nil, fmt.Errorf("fetch pages %d-%d: %w", start, end, err)
	}
	return pages, nil
}
