package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/powange/convention-de-jonglerie-sub008/core/domain"
	"github.com/powange/convention-de-jonglerie-sub008/core/port/out"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/apperr"
	"github.com/powange/convention-de-jonglerie-sub008/pkg/scheduler"
)

// =============================================================================
// Service - conversation realtime operations
// =============================================================================

// Service wires the chat store, the connection registry and the presence
// tracker behind the conversation endpoints.
type Service struct {
	store    out.ChatStore
	realtime out.RealtimePort
	presence *PresenceTracker
	sched    scheduler.Scheduler
	log      zerolog.Logger
}

// NewService creates the chat service.
func NewService(store out.ChatStore, realtime out.RealtimePort, presence *PresenceTracker,
	sched scheduler.Scheduler, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		realtime: realtime,
		presence: presence,
		sched:    sched,
		log:      log.With().Str("component", "chat_service").Logger(),
	}
}

// OpenConversationStream verifies the requester is an active participant and
// returns a started poller bound to the channel. Fails closed: no poller, no
// registration, when the check fails.
func (s *Service) OpenConversationStream(ctx context.Context, conversationID int64,
	userID uuid.UUID, ch out.Channel) (*Poller, error) {
	member, err := s.store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeDatabaseError, "participant check failed", 500)
	}
	if !member {
		return nil, apperr.Forbidden("not a participant of this conversation")
	}

	poller := NewPoller(s.store, s.sched, s.log, conversationID, ch)
	poller.Start(ctx)
	return poller, nil
}

// MarkRead advances the user's read watermark, then refreshes the unread
// badge on the user's live channels. The notify is fire and forget: an
// offline user is routine, never an error for the caller.
func (s *Service) MarkRead(ctx context.Context, conversationID int64, userID uuid.UUID, messageID int64) error {
	member, err := s.store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeDatabaseError, "participant check failed", 500)
	}
	if !member {
		return apperr.Forbidden("not a participant of this conversation")
	}

	if err := s.store.MarkRead(ctx, conversationID, userID, messageID); err != nil {
		return apperr.Wrap(err, apperr.CodeDatabaseError, "mark as read failed", 500)
	}

	s.NotifyUnreadCount(ctx, userID)
	return nil
}

// NotifyMessageCreated refreshes the unread badge of every participant after
// a message lands in the conversation. The author is skipped: their own
// messages never count as unread.
func (s *Service) NotifyMessageCreated(ctx context.Context, conversationID int64, authorID uuid.UUID) error {
	participants, err := s.store.Participants(ctx, conversationID)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeDatabaseError, "participant lookup failed", 500)
	}
	for _, userID := range participants {
		if userID == authorID {
			continue
		}
		s.NotifyUnreadCount(ctx, userID)
	}
	return nil
}

// NotifyUnreadCount recomputes the user's unread total and broadcasts it to
// the user scope. Errors are logged, never propagated.
func (s *Service) NotifyUnreadCount(ctx context.Context, userID uuid.UUID) {
	count, err := s.store.UnreadCount(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("unread count lookup failed")
		return
	}
	s.realtime.Broadcast(domain.UserScope(userID), domain.NewUnreadCountEvent(count))
}

// UnreadCount returns the user's current unread total on demand.
func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.UnreadCount(ctx, userID)
}

// SetTyping records or clears a typing fact after a participant check.
func (s *Service) SetTyping(ctx context.Context, conversationID int64, userID uuid.UUID, isTyping bool) error {
	member, err := s.store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeDatabaseError, "participant check failed", 500)
	}
	if !member {
		return apperr.Forbidden("not a participant of this conversation")
	}

	s.presence.SetTyping(userID, conversationID, isTyping)
	return nil
}

// ActiveTypers lists users currently typing in a conversation.
func (s *Service) ActiveTypers(conversationID int64) []uuid.UUID {
	return s.presence.ActiveTypers(conversationID)
}
