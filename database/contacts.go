package database

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/CUknot/realty_crm/models"
	"github.com/CUknot/realty_crm/services"
)

// ContactStore persists contacts with their interactions and deals. Every
// lookup is scoped to the owning user.
type ContactStore struct {
	db *gorm.DB
}

func NewContactStore(db *gorm.DB) *ContactStore {
	return &ContactStore{db: db}
}

func (s *ContactStore) CreateContact(ctx context.Context, c *models.Contact) error {
	return translateError(s.db.WithContext(ctx).Create(c).Error)
}

func (s *ContactStore) GetContact(ctx context.Context, ownerID, id uint) (*models.Contact, error) {
	var contact models.Contact
	err := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&contact).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &contact, nil
}

func (s *ContactStore) ListContacts(ctx context.Context, ownerID uint, f services.ContactFilter) ([]models.Contact, error) {
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if f.Stage != "" {
		q = q.Where("stage = ?", f.Stage)
	}
	if query := strings.TrimSpace(f.Query); query != "" {
		like := "%" + query + "%"
		q = q.Where("name ILIKE ? OR email ILIKE ?", like, like)
	}
	if f.ByScore {
		q = q.Order("relationship_score DESC")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var contacts []models.Contact
	if err := q.Order("id").Find(&contacts).Error; err != nil {
		return nil, translateError(err)
	}
	return contacts, nil
}

func (s *ContactStore) SaveContact(ctx context.Context, c *models.Contact) error {
	return translateError(s.db.WithContext(ctx).Save(c).Error)
}

// DeleteContact removes the contact together with its interactions and deals.
func (s *ContactStore) DeleteContact(ctx context.Context, ownerID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.Contact{})
		if result.Error != nil {
			return translateError(result.Error)
		}
		if result.RowsAffected == 0 {
			return services.ErrRecordNotFound
		}
		if err := tx.Where("contact_id = ?", id).Delete(&models.Interaction{}).Error; err != nil {
			return translateError(err)
		}
		return translateError(tx.Where("contact_id = ?", id).Delete(&models.Deal{}).Error)
	})
}

func (s *ContactStore) CreateInteraction(ctx context.Context, i *models.Interaction) error {
	return translateError(s.db.WithContext(ctx).Create(i).Error)
}

func (s *ContactStore) CountInteractionsSince(ctx context.Context, contactID uint, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Interaction{}).
		Where("contact_id = ? AND occurred_at >= ?", contactID, since).
		Count(&count).Error
	return count, translateError(err)
}

func (s *ContactStore) CreateDeal(ctx context.Context, d *models.Deal) error {
	return translateError(s.db.WithContext(ctx).Create(d).Error)
}

func (s *ContactStore) GetDeal(ctx context.Context, ownerID, id uint) (*models.Deal, error) {
	var deal models.Deal
	err := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&deal).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &deal, nil
}

func (s *ContactStore) ListDeals(ctx context.Context, contactID uint) ([]models.Deal, error) {
	var deals []models.Deal
	if err := s.db.WithContext(ctx).Where("contact_id = ?", contactID).Order("id").Find(&deals).Error; err != nil {
		return nil, translateError(err)
	}
	return deals, nil
}

func (s *ContactStore) SaveDeal(ctx context.Context, d *models.Deal) error {
	return translateError(s.db.WithContext(ctx).Save(d).Error)
}
