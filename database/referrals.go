package database

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CUknot/realty_crm/models"
	"github.com/CUknot/realty_crm/services"
)

// ReferralStore persists referrals, claims and referral messages.
type ReferralStore struct {
	db *gorm.DB
}

func NewReferralStore(db *gorm.DB) *ReferralStore {
	return &ReferralStore{db: db}
}

func (s *ReferralStore) WithTx(ctx context.Context, fn func(tx services.ReferralStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ReferralStore{db: tx})
	})
}

func lockFor(db *gorm.DB, forUpdate bool) *gorm.DB {
	if forUpdate {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func (s *ReferralStore) CreateReferral(ctx context.Context, r *models.Referral) error {
	return translateError(s.db.WithContext(ctx).Omit(clause.Associations).Create(r).Error)
}

func (s *ReferralStore) GetReferral(ctx context.Context, id uint, forUpdate bool) (*models.Referral, error) {
	var referral models.Referral
	err := lockFor(s.db.WithContext(ctx), forUpdate).First(&referral, id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &referral, nil
}

func (s *ReferralStore) ListReferrals(ctx context.Context, f services.ReferralFilter) ([]models.Referral, error) {
	q := s.db.WithContext(ctx).Preload("Creator")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.CreatorID != 0 {
		q = q.Where("creator_id = ?", f.CreatorID)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var referrals []models.Referral
	if err := q.Order("created_at DESC").Find(&referrals).Error; err != nil {
		return nil, translateError(err)
	}
	return referrals, nil
}

func (s *ReferralStore) SaveReferral(ctx context.Context, r *models.Referral) error {
	return translateError(s.db.WithContext(ctx).Omit(clause.Associations).Save(r).Error)
}

func (s *ReferralStore) CreateClaim(ctx context.Context, c *models.Claim) error {
	return translateError(s.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error)
}

func (s *ReferralStore) GetClaim(ctx context.Context, referralID, claimID uint, forUpdate bool) (*models.Claim, error) {
	var claim models.Claim
	err := lockFor(s.db.WithContext(ctx), forUpdate).
		Where("id = ? AND referral_id = ?", claimID, referralID).
		First(&claim).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &claim, nil
}

func (s *ReferralStore) FindActiveClaim(ctx context.Context, referralID, claimantID uint) (*models.Claim, error) {
	var claim models.Claim
	err := s.db.WithContext(ctx).
		Where("referral_id = ? AND claimant_id = ? AND status <> ?", referralID, claimantID, models.ClaimStatusRejected).
		First(&claim).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &claim, nil
}

func (s *ReferralStore) ListClaims(ctx context.Context, referralID uint) ([]models.Claim, error) {
	var claims []models.Claim
	err := s.db.WithContext(ctx).
		Preload("Claimant").
		Where("referral_id = ?", referralID).
		Order("created_at, id").
		Find(&claims).Error
	if err != nil {
		return nil, translateError(err)
	}
	return claims, nil
}

func (s *ReferralStore) SaveClaim(ctx context.Context, c *models.Claim) error {
	return translateError(s.db.WithContext(ctx).Omit(clause.Associations).Save(c).Error)
}

func (s *ReferralStore) CreateReferralMessage(ctx context.Context, m *models.ReferralMessage) error {
	return translateError(s.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error)
}

func (s *ReferralStore) ListReferralMessages(ctx context.Context, referralID uint) ([]models.ReferralMessage, error) {
	var messages []models.ReferralMessage
	err := s.db.WithContext(ctx).
		Preload("Author").
		Where("referral_id = ?", referralID).
		Order("created_at, id").
		Find(&messages).Error
	if err != nil {
		return nil, translateError(err)
	}
	return messages, nil
}

func (s *ReferralStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return getUser(s.db.WithContext(ctx), id)
}
