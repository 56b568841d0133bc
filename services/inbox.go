package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CUknot/realty_crm/models"
)

// Realtime event types emitted by the inbox.
const (
	EventMessage       = "message"
	EventInboxActivity = "inbox_activity"
)

type CreateThreadInput struct {
	Subject        string
	ParticipantIDs []uint
	ContactID      *uint
	Body           string
}

// ThreadDetail is a thread with its participants and full message history.
type ThreadDetail struct {
	Thread       models.Thread              `json:"thread"`
	Participants []models.ThreadParticipant `json:"participants"`
	Messages     []models.Message           `json:"messages"`
	LastReadAt   time.Time                  `json:"lastReadAt"`
}

// InboxActivity tells a participant that a thread changed without sending
// the message body to sockets that have not joined the thread.
type InboxActivity struct {
	ThreadID  uint `json:"thread_id"`
	MessageID uint `json:"message_id,omitempty"`
	UserID    uint `json:"user_id"`
}

type InboxService struct {
	store    InboxStore
	notifier Notifier
	now      func() time.Time
}

func NewInboxService(store InboxStore, notifier Notifier) *InboxService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &InboxService{
		store:    store,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func validChannel(channel string) bool {
	switch channel {
	case models.ChannelNote, models.ChannelEmail, models.ChannelSMS:
		return true
	}
	return false
}

// CreateThread opens a thread between actorID and the given participants.
// The creator starts with the thread read; everyone else starts unread.
func (s *InboxService) CreateThread(ctx context.Context, actorID uint, in CreateThreadInput) (*models.Thread, error) {
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		return nil, Invalid("subject is required")
	}

	participants := []uint{actorID}
	seen := map[uint]bool{actorID: true}
	for _, id := range in.ParticipantIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		participants = append(participants, id)
	}

	found, err := s.store.CountUsers(ctx, participants)
	if err != nil {
		return nil, Unexpected("failed to look up participants", err)
	}
	if found != int64(len(participants)) {
		return nil, Invalid("one or more participants do not exist")
	}

	now := s.now()
	body := strings.TrimSpace(in.Body)
	thread := &models.Thread{
		Subject:       subject,
		CreatedBy:     actorID,
		ContactID:     in.ContactID,
		LastMessageAt: now,
	}

	err = s.store.WithTx(ctx, func(tx InboxStore) error {
		if err := tx.CreateThread(ctx, thread); err != nil {
			return Unexpected("failed to create thread", err)
		}
		for _, userID := range participants {
			p := &models.ThreadParticipant{ThreadID: thread.ID, UserID: userID}
			if userID == actorID {
				p.LastReadAt = now
			}
			if err := tx.AddParticipant(ctx, p); err != nil {
				return Unexpected("failed to add participant", err)
			}
		}
		if body != "" {
			if err := tx.CreateMessage(ctx, &models.Message{
				ThreadID:  thread.ID,
				UserID:    actorID,
				Body:      body,
				Channel:   models.ChannelNote,
				CreatedAt: now,
			}); err != nil {
				return Unexpected("failed to create message", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, userID := range participants[1:] {
		s.notifier.NotifyUser(userID, EventInboxActivity, InboxActivity{ThreadID: thread.ID, UserID: actorID})
	}
	return thread, nil
}

func (s *InboxService) ListThreads(ctx context.Context, actorID uint) ([]ThreadSummary, error) {
	summaries, err := s.store.ListThreadSummaries(ctx, actorID)
	if err != nil {
		return nil, Unexpected("failed to fetch threads", err)
	}
	for i := range summaries {
		summaries[i].Unread = summaries[i].Thread.LastMessageAt.After(summaries[i].LastReadAt)
	}
	return summaries, nil
}

func (s *InboxService) GetThread(ctx context.Context, actorID, threadID uint) (*ThreadDetail, error) {
	participant, err := s.participant(ctx, actorID, threadID)
	if err != nil {
		return nil, err
	}
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, notFoundOr(err, "thread not found", "failed to load thread")
	}
	participants, err := s.store.ListParticipants(ctx, threadID)
	if err != nil {
		return nil, Unexpected("failed to fetch participants", err)
	}
	messages, err := s.store.ListMessages(ctx, threadID)
	if err != nil {
		return nil, Unexpected("failed to fetch messages", err)
	}

	return &ThreadDetail{
		Thread:       *thread,
		Participants: participants,
		Messages:     messages,
		LastReadAt:   participant.LastReadAt,
	}, nil
}

// PostMessage appends a message, advances the thread's activity timestamp
// and marks the thread read for the sender.
func (s *InboxService) PostMessage(ctx context.Context, actorID, threadID uint, body, channel string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, Invalid("message body is required")
	}
	if channel == "" {
		channel = models.ChannelNote
	}
	if !validChannel(channel) {
		return nil, Invalid(fmt.Sprintf("unknown channel %q", channel))
	}
	if _, err := s.participant(ctx, actorID, threadID); err != nil {
		return nil, err
	}

	now := s.now()
	message := &models.Message{
		ThreadID:  threadID,
		UserID:    actorID,
		Body:      body,
		Channel:   channel,
		CreatedAt: now,
	}
	err := s.store.WithTx(ctx, func(tx InboxStore) error {
		if err := tx.CreateMessage(ctx, message); err != nil {
			return Unexpected("failed to create message", err)
		}
		if err := tx.TouchThread(ctx, threadID, now); err != nil {
			return Unexpected("failed to update thread", err)
		}
		if err := tx.MarkRead(ctx, threadID, actorID, now); err != nil {
			return Unexpected("failed to update read state", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.BroadcastToThread(threadID, EventMessage, message)
	if participants, err := s.store.ListParticipants(ctx, threadID); err == nil {
		for _, p := range participants {
			if p.UserID != actorID {
				s.notifier.NotifyUser(p.UserID, EventInboxActivity, InboxActivity{
					ThreadID:  threadID,
					MessageID: message.ID,
					UserID:    actorID,
				})
			}
		}
	}
	return message, nil
}

func (s *InboxService) MarkRead(ctx context.Context, actorID, threadID uint) (time.Time, error) {
	if _, err := s.participant(ctx, actorID, threadID); err != nil {
		return time.Time{}, err
	}
	now := s.now()
	if err := s.store.MarkRead(ctx, threadID, actorID, now); err != nil {
		return time.Time{}, Unexpected("failed to update read state", err)
	}
	return now, nil
}

// UnreadSummary counts unread threads and messages across all of the actor's
// threads.
func (s *InboxService) UnreadSummary(ctx context.Context, actorID uint) (UnreadSummary, error) {
	summaries, err := s.ListThreads(ctx, actorID)
	if err != nil {
		return UnreadSummary{}, err
	}
	var out UnreadSummary
	for _, ts := range summaries {
		if ts.Unread {
			out.Threads++
		}
		out.Messages += ts.UnreadCount
	}
	return out, nil
}

// IsParticipant is used by the websocket layer before joining a thread room.
func (s *InboxService) IsParticipant(ctx context.Context, actorID, threadID uint) bool {
	_, err := s.participant(ctx, actorID, threadID)
	return err == nil
}

func (s *InboxService) participant(ctx context.Context, actorID, threadID uint) (*models.ThreadParticipant, error) {
	p, err := s.store.GetParticipant(ctx, threadID, actorID)
	if err != nil {
		return nil, notFoundOr(err, "thread not found", "failed to load thread membership")
	}
	return p, nil
}
