// Package live broadcasts edition-wide facts (ticket validations, stats) to
// connected clients. The CRUD handlers that commit those facts call in here
// after their own write succeeds.
package live

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
	"github.com/powange/convention-de-jonglerie-sub008/core/port/out"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/cache"
)

const statsSnapshotTTL = 10 * time.Minute

// EntryEvent is the fact broadcast when a ticket is scanned.
type EntryEvent struct {
	EntryID     int64  `json:"entryId"`
	TicketCode  string `json:"ticketCode,omitempty"`
	ValidatedBy string `json:"validatedBy,omitempty"`
	ValidatedAt string `json:"validatedAt"`
}

// EditionStats is the aggregate pushed on stats-updated and replayed to new
// subscribers as a baseline.
type EditionStats struct {
	TotalEntries     int64 `json:"totalEntries"`
	ValidatedEntries int64 `json:"validatedEntries"`
	UpdatedAt        int64 `json:"updatedAt"`
}

// =============================================================================
// Service - edition scope broadcasting
// =============================================================================

// Service fans edition facts out through the registry and keeps the latest
// stats snapshot cached so a fresh subscriber gets a baseline immediately.
type Service struct {
	realtime out.RealtimePort
	cache    *cache.RedisCache // optional
	log      zerolog.Logger
}

// NewService creates the live service. cache may be nil.
func NewService(realtime out.RealtimePort, c *cache.RedisCache, log zerolog.Logger) *Service {
	return &Service{
		realtime: realtime,
		cache:    c,
		log:      log.With().Str("component", "live_service").Logger(),
	}
}

// BroadcastEntryValidated pushes an entry-validated fact to the edition scope.
func (s *Service) BroadcastEntryValidated(editionID int64, event *EntryEvent) {
	s.realtime.Broadcast(domain.EditionScope(editionID),
		domain.NewEditionEvent(domain.EventEntryValidated, event))
}

// BroadcastEntryInvalidated pushes an entry-invalidated fact (a scan undone).
func (s *Service) BroadcastEntryInvalidated(editionID int64, event *EntryEvent) {
	s.realtime.Broadcast(domain.EditionScope(editionID),
		domain.NewEditionEvent(domain.EventEntryInvalidated, event))
}

// UpdateStats caches the snapshot and broadcasts stats-updated.
func (s *Service) UpdateStats(ctx context.Context, editionID int64, stats *EditionStats) {
	stats.UpdatedAt = time.Now().UnixMilli()

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, statsKey(editionID), stats, statsSnapshotTTL); err != nil {
			s.log.Debug().Err(err).Int64("edition_id", editionID).Msg("stats snapshot cache write failed")
		}
	}

	s.realtime.Broadcast(domain.EditionScope(editionID),
		domain.NewEditionEvent(domain.EventStatsUpdated, stats))
}

// StatsSnapshot returns the cached baseline, or nil when none exists.
func (s *Service) StatsSnapshot(ctx context.Context, editionID int64) *EditionStats {
	if s.cache == nil {
		return nil
	}

	var stats EditionStats
	found, err := s.cache.GetJSON(ctx, statsKey(editionID), &stats)
	if err != nil {
		s.log.Debug().Err(err).Int64("edition_id", editionID).Msg("stats snapshot cache read failed")
		return nil
	}
	if !found {
		return nil
	}
	return &stats
}

// ConnectedCount reports live connections for an edition.
func (s *Service) ConnectedCount(editionID int64) int {
	return s.realtime.Count(domain.EditionScope(editionID))
}

func statsKey(editionID int64) string {
	return fmt.Sprintf("edition:stats:%d", editionID)
}
