package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"resident_directory/internal/domain"
	"resident_directory/internal/tabular"
)

// ErrEmptyFeed is returned when the feed body has no header line at all.
// Publishing that would wipe the directory, so it counts as a failure.
var ErrEmptyFeed = errors.New("feed: empty body")

// IngestionService runs one fetch -> parse -> map pass.
type IngestionService struct {
	feed   domain.FeedFetcher
	mapper *Mapper
	now    func() time.Time
}

func NewIngestionService(f domain.FeedFetcher, m *Mapper) *IngestionService {
	if m == nil {
		m = NewMapper(nil)
	}
	return &IngestionService{feed: f, mapper: m, now: time.Now}
}

// Ingest builds a fresh snapshot. FetchedAt is taken after mapping, i.e. at
// completion time.
func (s *IngestionService) Ingest(ctx context.Context) (domain.Snapshot, error) {
	text, err := s.feed.FetchFeed(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("fetch feed: %w", err)
	}
	if strings.Trim(text, " \t\r\n\uFEFF") == "" {
		return domain.Snapshot{}, ErrEmptyFeed
	}

	rows := tabular.Parse(text)
	records, ec := s.mapper.MapRows(rows)

	log.Debug().
		Int("rows", len(rows)).
		Int("records", len(records)).
		Msg("feed mapped")

	return domain.Snapshot{
		Version:   uuid.NewString(),
		Records:   records,
		Emergency: ec,
		FetchedAt: s.now(),
	}, nil
}
