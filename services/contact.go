package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CUknot/realty_crm/models"
	"github.com/CUknot/realty_crm/scoring"
)

const interactionWindow = 90 * 24 * time.Hour

type ContactInput struct {
	Name           string
	Email          string
	Phone          string
	Stage          string
	Source         string
	ReferralsGiven int
}

// ContactUpdate carries optional fields; nil leaves the stored value alone.
type ContactUpdate struct {
	Name           *string
	Email          *string
	Phone          *string
	Stage          *string
	Source         *string
	ReferralsGiven *int
}

type InteractionInput struct {
	Kind       string
	Notes      string
	OccurredAt *time.Time
}

type DealInput struct {
	Title      string
	Stage      string
	ValueCents int64
}

// ContactScore is the stored contact together with the breakdown that
// produced its score.
type ContactScore struct {
	Contact models.Contact `json:"contact"`
	Score   scoring.Result `json:"score"`
}

type ContactService struct {
	store ContactStore
	now   func() time.Time
}

func NewContactService(store ContactStore) *ContactService {
	return &ContactService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func validStage(stage string) bool {
	switch stage {
	case models.StageLead, models.StageProspect, models.StageClient, models.StagePastClient, models.StageSphere:
		return true
	}
	return false
}

func validDealStage(stage string) bool {
	switch stage {
	case models.DealProspecting, models.DealUnderContract, models.DealClosedWon, models.DealClosedLost:
		return true
	}
	return false
}

func validInteraction(kind string) bool {
	switch kind {
	case models.InteractionCall, models.InteractionEmail, models.InteractionSMS, models.InteractionMeeting, models.InteractionNote:
		return true
	}
	return false
}

func (s *ContactService) Create(ctx context.Context, ownerID uint, in ContactInput) (*models.Contact, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, Invalid("name is required")
	}
	stage := in.Stage
	if stage == "" {
		stage = models.StageLead
	}
	if !validStage(stage) {
		return nil, Invalid(fmt.Sprintf("unknown stage %q", stage))
	}
	if in.ReferralsGiven < 0 {
		return nil, Invalid("referrals_given cannot be negative")
	}

	contact := &models.Contact{
		OwnerID:        ownerID,
		Name:           name,
		Email:          strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:          strings.TrimSpace(in.Phone),
		Stage:          stage,
		Source:         strings.TrimSpace(in.Source),
		ReferralsGiven: in.ReferralsGiven,
	}
	result := scoring.Score(signalsFor(contact, 0, 0, 0), s.now())
	contact.RelationshipScore = result.Score
	contact.ScoreTier = result.Tier

	if err := s.store.CreateContact(ctx, contact); err != nil {
		return nil, Unexpected("failed to create contact", err)
	}
	return contact, nil
}

func (s *ContactService) List(ctx context.Context, ownerID uint, f ContactFilter) ([]models.Contact, error) {
	if f.Stage != "" && !validStage(f.Stage) {
		return nil, Invalid(fmt.Sprintf("unknown stage %q", f.Stage))
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	contacts, err := s.store.ListContacts(ctx, ownerID, f)
	if err != nil {
		return nil, Unexpected("failed to fetch contacts", err)
	}
	return contacts, nil
}

func (s *ContactService) Get(ctx context.Context, ownerID, id uint) (*models.Contact, error) {
	contact, err := s.store.GetContact(ctx, ownerID, id)
	if err != nil {
		return nil, notFoundOr(err, "contact not found", "failed to load contact")
	}
	return contact, nil
}

func (s *ContactService) Update(ctx context.Context, ownerID, id uint, in ContactUpdate) (*models.Contact, error) {
	contact, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, Invalid("name cannot be empty")
		}
		contact.Name = name
	}
	if in.Email != nil {
		contact.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if in.Phone != nil {
		contact.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Stage != nil {
		if !validStage(*in.Stage) {
			return nil, Invalid(fmt.Sprintf("unknown stage %q", *in.Stage))
		}
		contact.Stage = *in.Stage
	}
	if in.Source != nil {
		contact.Source = strings.TrimSpace(*in.Source)
	}
	if in.ReferralsGiven != nil {
		if *in.ReferralsGiven < 0 {
			return nil, Invalid("referrals_given cannot be negative")
		}
		contact.ReferralsGiven = *in.ReferralsGiven
	}

	if _, err := s.rescore(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *ContactService) Delete(ctx context.Context, ownerID, id uint) error {
	if err := s.store.DeleteContact(ctx, ownerID, id); err != nil {
		return notFoundOr(err, "contact not found", "failed to delete contact")
	}
	return nil
}

// LogInteraction records a touchpoint and rescores the contact. Backdated
// interactions never move LastContactedAt backwards.
func (s *ContactService) LogInteraction(ctx context.Context, ownerID, contactID uint, in InteractionInput) (*models.Interaction, error) {
	if !validInteraction(in.Kind) {
		return nil, Invalid(fmt.Sprintf("unknown interaction kind %q", in.Kind))
	}
	contact, err := s.Get(ctx, ownerID, contactID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	occurredAt := now
	if in.OccurredAt != nil {
		if in.OccurredAt.After(now) {
			return nil, Invalid("occurred_at cannot be in the future")
		}
		occurredAt = in.OccurredAt.UTC()
	}

	interaction := &models.Interaction{
		ContactID:  contact.ID,
		AuthorID:   ownerID,
		Kind:       in.Kind,
		Notes:      strings.TrimSpace(in.Notes),
		OccurredAt: occurredAt,
	}
	if err := s.store.CreateInteraction(ctx, interaction); err != nil {
		return nil, Unexpected("failed to record interaction", err)
	}

	if contact.LastContactedAt == nil || occurredAt.After(*contact.LastContactedAt) {
		contact.LastContactedAt = &occurredAt
	}
	if _, err := s.rescore(ctx, contact); err != nil {
		return nil, err
	}
	return interaction, nil
}

// Score recomputes and persists the contact's relationship score.
func (s *ContactService) Score(ctx context.Context, ownerID, contactID uint) (*ContactScore, error) {
	contact, err := s.Get(ctx, ownerID, contactID)
	if err != nil {
		return nil, err
	}
	result, err := s.rescore(ctx, contact)
	if err != nil {
		return nil, err
	}
	return &ContactScore{Contact: *contact, Score: result}, nil
}

func (s *ContactService) CreateDeal(ctx context.Context, ownerID, contactID uint, in DealInput) (*models.Deal, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, Invalid("title is required")
	}
	stage := in.Stage
	if stage == "" {
		stage = models.DealProspecting
	}
	if !validDealStage(stage) {
		return nil, Invalid(fmt.Sprintf("unknown deal stage %q", stage))
	}
	if in.ValueCents < 0 {
		return nil, Invalid("value_cents cannot be negative")
	}

	contact, err := s.Get(ctx, ownerID, contactID)
	if err != nil {
		return nil, err
	}

	deal := &models.Deal{
		ContactID:  contact.ID,
		OwnerID:    ownerID,
		Title:      title,
		Stage:      stage,
		ValueCents: in.ValueCents,
	}
	if !deal.IsOpen() {
		closedAt := s.now()
		deal.ClosedAt = &closedAt
	}
	if err := s.store.CreateDeal(ctx, deal); err != nil {
		return nil, Unexpected("failed to create deal", err)
	}
	if _, err := s.rescore(ctx, contact); err != nil {
		return nil, err
	}
	return deal, nil
}

func (s *ContactService) ListDeals(ctx context.Context, ownerID, contactID uint) ([]models.Deal, error) {
	if _, err := s.Get(ctx, ownerID, contactID); err != nil {
		return nil, err
	}
	deals, err := s.store.ListDeals(ctx, contactID)
	if err != nil {
		return nil, Unexpected("failed to fetch deals", err)
	}
	return deals, nil
}

// UpdateDealStage moves a deal through the pipeline. Closed deals cannot be
// reopened.
func (s *ContactService) UpdateDealStage(ctx context.Context, ownerID, dealID uint, stage string) (*models.Deal, error) {
	if !validDealStage(stage) {
		return nil, Invalid(fmt.Sprintf("unknown deal stage %q", stage))
	}
	deal, err := s.store.GetDeal(ctx, ownerID, dealID)
	if err != nil {
		return nil, notFoundOr(err, "deal not found", "failed to load deal")
	}
	if !deal.IsOpen() {
		return nil, InvalidState(fmt.Sprintf("deal is already %s", deal.Stage))
	}

	deal.Stage = stage
	if !deal.IsOpen() {
		closedAt := s.now()
		deal.ClosedAt = &closedAt
	}
	if err := s.store.SaveDeal(ctx, deal); err != nil {
		return nil, Unexpected("failed to update deal", err)
	}

	contact, err := s.store.GetContact(ctx, ownerID, deal.ContactID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return deal, nil
		}
		return nil, Unexpected("failed to load contact", err)
	}
	if _, err := s.rescore(ctx, contact); err != nil {
		return nil, err
	}
	return deal, nil
}

func (s *ContactService) rescore(ctx context.Context, contact *models.Contact) (scoring.Result, error) {
	now := s.now()
	interactions, err := s.store.CountInteractionsSince(ctx, contact.ID, now.Add(-interactionWindow))
	if err != nil {
		return scoring.Result{}, Unexpected("failed to count interactions", err)
	}
	deals, err := s.store.ListDeals(ctx, contact.ID)
	if err != nil {
		return scoring.Result{}, Unexpected("failed to fetch deals", err)
	}
	var open, won int
	for _, d := range deals {
		switch {
		case d.IsOpen():
			open++
		case d.Stage == models.DealClosedWon:
			won++
		}
	}

	result := scoring.Score(signalsFor(contact, int(interactions), won, open), now)
	contact.RelationshipScore = result.Score
	contact.ScoreTier = result.Tier
	if err := s.store.SaveContact(ctx, contact); err != nil {
		return scoring.Result{}, Unexpected("failed to save contact", err)
	}
	return result, nil
}

func signalsFor(c *models.Contact, interactions, closedDeals, openDeals int) scoring.Signals {
	return scoring.Signals{
		LastContactedAt:        c.LastContactedAt,
		InteractionsLast90Days: interactions,
		ClosedDeals:            closedDeals,
		OpenDeals:              openDeals,
		ReferralsGiven:         c.ReferralsGiven,
		HasEmail:               c.Email != "",
		HasPhone:               c.Phone != "",
	}
}
