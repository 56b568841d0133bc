package services

import (
	"context"
	"time"

	"github.com/CUknot/realty_crm/models"
)

// ReferralFilter narrows ListReferrals. Zero values mean "any".
type ReferralFilter struct {
	Status    string
	Category  string
	CreatorID uint
	Limit     int
}

// ReferralStore is the persistence the referral workflow needs. Stores
// return ErrRecordNotFound for missing rows and ErrDuplicate when a unique
// constraint rejects a write.
type ReferralStore interface {
	// WithTx runs fn inside a single database transaction.
	WithTx(ctx context.Context, fn func(tx ReferralStore) error) error

	CreateReferral(ctx context.Context, r *models.Referral) error
	// GetReferral loads a referral; forUpdate locks the row until the
	// surrounding transaction ends.
	GetReferral(ctx context.Context, id uint, forUpdate bool) (*models.Referral, error)
	ListReferrals(ctx context.Context, f ReferralFilter) ([]models.Referral, error)
	SaveReferral(ctx context.Context, r *models.Referral) error

	CreateClaim(ctx context.Context, c *models.Claim) error
	GetClaim(ctx context.Context, referralID, claimID uint, forUpdate bool) (*models.Claim, error)
	FindActiveClaim(ctx context.Context, referralID, claimantID uint) (*models.Claim, error)
	ListClaims(ctx context.Context, referralID uint) ([]models.Claim, error)
	SaveClaim(ctx context.Context, c *models.Claim) error

	CreateReferralMessage(ctx context.Context, m *models.ReferralMessage) error
	ListReferralMessages(ctx context.Context, referralID uint) ([]models.ReferralMessage, error)

	GetUser(ctx context.Context, id uint) (*models.User, error)
}

// ThreadSummary is a thread as seen by one participant.
type ThreadSummary struct {
	Thread      models.Thread `json:"thread"`
	LastReadAt  time.Time     `json:"lastReadAt"`
	UnreadCount int64         `json:"unreadCount"`
	Unread      bool          `json:"unread"`
}

type UnreadSummary struct {
	Threads  int64 `json:"threads"`
	Messages int64 `json:"messages"`
}

type InboxStore interface {
	WithTx(ctx context.Context, fn func(tx InboxStore) error) error

	CreateThread(ctx context.Context, t *models.Thread) error
	AddParticipant(ctx context.Context, p *models.ThreadParticipant) error
	GetThread(ctx context.Context, id uint) (*models.Thread, error)
	ListParticipants(ctx context.Context, threadID uint) ([]models.ThreadParticipant, error)
	GetParticipant(ctx context.Context, threadID, userID uint) (*models.ThreadParticipant, error)
	// ListThreadSummaries returns the user's threads, most recent activity
	// first, with unread counts excluding the user's own messages.
	ListThreadSummaries(ctx context.Context, userID uint) ([]ThreadSummary, error)
	ListMessages(ctx context.Context, threadID uint) ([]models.Message, error)
	CreateMessage(ctx context.Context, m *models.Message) error
	TouchThread(ctx context.Context, threadID uint, at time.Time) error
	MarkRead(ctx context.Context, threadID, userID uint, at time.Time) error
	CountUsers(ctx context.Context, ids []uint) (int64, error)
}

// ContactFilter narrows ListContacts.
type ContactFilter struct {
	Query   string
	Stage   string
	ByScore bool
	Limit   int
}

type ContactStore interface {
	CreateContact(ctx context.Context, c *models.Contact) error
	GetContact(ctx context.Context, ownerID, id uint) (*models.Contact, error)
	ListContacts(ctx context.Context, ownerID uint, f ContactFilter) ([]models.Contact, error)
	SaveContact(ctx context.Context, c *models.Contact) error
	DeleteContact(ctx context.Context, ownerID, id uint) error

	CreateInteraction(ctx context.Context, i *models.Interaction) error
	CountInteractionsSince(ctx context.Context, contactID uint, since time.Time) (int64, error)

	CreateDeal(ctx context.Context, d *models.Deal) error
	GetDeal(ctx context.Context, ownerID, id uint) (*models.Deal, error)
	ListDeals(ctx context.Context, contactID uint) ([]models.Deal, error)
	SaveDeal(ctx context.Context, d *models.Deal) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// SessionStore keeps the server side of session cookies.
type SessionStore interface {
	Create(ctx context.Context, userID uint) (string, error)
	Delete(ctx context.Context, id string) error
}

// Notifier pushes realtime events to connected users.
type Notifier interface {
	NotifyUser(userID uint, eventType string, payload interface{})
	BroadcastToThread(threadID uint, eventType string, payload interface{})
}

// Mailer delivers notification e-mails.
type Mailer interface {
	Send(to, subject, body string) error
}

type nopNotifier struct{}

func (nopNotifier) NotifyUser(uint, string, interface{})        {}
func (nopNotifier) BroadcastToThread(uint, string, interface{}) {}

type nopMailer struct{}

func (nopMailer) Send(string, string, string) error { return nil }
