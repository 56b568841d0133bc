package database

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CUknot/realty_crm/models"
	"github.com/CUknot/realty_crm/services"
)

// InboxStore persists threads, participants and their messages.
type InboxStore struct {
	db *gorm.DB
}

func NewInboxStore(db *gorm.DB) *InboxStore {
	return &InboxStore{db: db}
}

func (s *InboxStore) WithTx(ctx context.Context, fn func(tx services.InboxStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&InboxStore{db: tx})
	})
}

func (s *InboxStore) CreateThread(ctx context.Context, t *models.Thread) error {
	return translateError(s.db.WithContext(ctx).Omit(clause.Associations).Create(t).Error)
}

func (s *InboxStore) AddParticipant(ctx context.Context, p *models.ThreadParticipant) error {
	return translateError(s.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error)
}

func (s *InboxStore) GetThread(ctx context.Context, id uint) (*models.Thread, error) {
	var thread models.Thread
	if err := s.db.WithContext(ctx).First(&thread, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &thread, nil
}

func (s *InboxStore) ListParticipants(ctx context.Context, threadID uint) ([]models.ThreadParticipant, error) {
	var participants []models.ThreadParticipant
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("thread_id = ?", threadID).
		Order("user_id").
		Find(&participants).Error
	if err != nil {
		return nil, translateError(err)
	}
	return participants, nil
}

func (s *InboxStore) GetParticipant(ctx context.Context, threadID, userID uint) (*models.ThreadParticipant, error) {
	var participant models.ThreadParticipant
	err := s.db.WithContext(ctx).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		First(&participant).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &participant, nil
}

type threadSummaryRow struct {
	ID            uint
	Subject       string
	CreatedBy     uint
	ContactID     *uint
	LastMessageAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastReadAt    time.Time
	UnreadCount   int64
}

const threadSummariesQuery = `
SELECT t.id, t.subject, t.created_by, t.contact_id, t.last_message_at, t.created_at, t.updated_at,
       tp.last_read_at,
       (SELECT COUNT(*) FROM messages m
         WHERE m.thread_id = t.id
           AND m.user_id <> tp.user_id
           AND m.created_at > tp.last_read_at) AS unread_count
FROM threads t
JOIN thread_participants tp ON tp.thread_id = t.id
WHERE tp.user_id = ?
ORDER BY t.last_message_at DESC, t.id DESC`

func (s *InboxStore) ListThreadSummaries(ctx context.Context, userID uint) ([]services.ThreadSummary, error) {
	var rows []threadSummaryRow
	if err := s.db.WithContext(ctx).Raw(threadSummariesQuery, userID).Scan(&rows).Error; err != nil {
		return nil, translateError(err)
	}

	summaries := make([]services.ThreadSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, services.ThreadSummary{
			Thread: models.Thread{
				ID:            row.ID,
				Subject:       row.Subject,
				CreatedBy:     row.CreatedBy,
				ContactID:     row.ContactID,
				LastMessageAt: row.LastMessageAt,
				CreatedAt:     row.CreatedAt,
				UpdatedAt:     row.UpdatedAt,
			},
			LastReadAt:  row.LastReadAt,
			UnreadCount: row.UnreadCount,
		})
	}
	return summaries, nil
}

func (s *InboxStore) ListMessages(ctx context.Context, threadID uint) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("thread_id = ?", threadID).
		Order("created_at, id").
		Find(&messages).Error
	if err != nil {
		return nil, translateError(err)
	}
	return messages, nil
}

func (s *InboxStore) CreateMessage(ctx context.Context, m *models.Message) error {
	return translateError(s.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error)
}

func (s *InboxStore) TouchThread(ctx context.Context, threadID uint, at time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&models.Thread{}).
		Where("id = ?", threadID).
		Update("last_message_at", at).Error
	return translateError(err)
}

func (s *InboxStore) MarkRead(ctx context.Context, threadID, userID uint, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.ThreadParticipant{}).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		Update("last_read_at", at)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return services.ErrRecordNotFound
	}
	return nil
}

func (s *InboxStore) CountUsers(ctx context.Context, ids []uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id IN ?", ids).Count(&count).Error
	return count, translateError(err)
}
