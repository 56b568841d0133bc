package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/CUknot/realty_crm/models"
)

// EventReferral is the realtime event type used for every referral update.
const EventReferral = "referral_event"

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ReferralEvent is pushed to the users affected by a referral transition.
type ReferralEvent struct {
	Event      string `json:"event"`
	ReferralID uint   `json:"referral_id"`
	ClaimID    uint   `json:"claim_id,omitempty"`
	Status     string `json:"status"`
	ActorID    uint   `json:"actor_id"`
}

type CreateReferralInput struct {
	Title       string
	Description string
	Category    string
	Location    string
	FeePercent  float64
}

type PostReferralMessageInput struct {
	Body       string
	Visibility string
	ClaimID    *uint
}

// ReferralDetail is a referral with the claims and messages visible to the
// viewer.
type ReferralDetail struct {
	Referral models.Referral          `json:"referral"`
	Claims   []models.Claim           `json:"claims"`
	Messages []models.ReferralMessage `json:"messages"`
}

// ReferralService implements the referral marketplace: posting referrals and
// the claim/accept/reject/close lifecycle.
type ReferralService struct {
	store    ReferralStore
	notifier Notifier
	mailer   Mailer
	now      func() time.Time
}

func NewReferralService(store ReferralStore, notifier Notifier, mailer Mailer) *ReferralService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if mailer == nil {
		mailer = nopMailer{}
	}
	return &ReferralService{
		store:    store,
		notifier: notifier,
		mailer:   mailer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ValidCategory reports whether category is one of models.ReferralCategories.
func ValidCategory(category string) bool {
	for _, c := range models.ReferralCategories {
		if c == category {
			return true
		}
	}
	return false
}

func (s *ReferralService) Create(ctx context.Context, actorID uint, in CreateReferralInput) (*models.Referral, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, Invalid("title is required")
	}
	if !ValidCategory(in.Category) {
		return nil, Invalid(fmt.Sprintf("unknown category %q", in.Category))
	}
	if in.FeePercent < 0 || in.FeePercent > 100 {
		return nil, Invalid("fee_percent must be between 0 and 100")
	}

	referral := &models.Referral{
		CreatorID:   actorID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Location:    strings.TrimSpace(in.Location),
		FeePercent:  in.FeePercent,
		Status:      models.ReferralStatusOpen,
	}
	if err := s.store.CreateReferral(ctx, referral); err != nil {
		return nil, Unexpected("failed to create referral", err)
	}
	return referral, nil
}

func (s *ReferralService) List(ctx context.Context, f ReferralFilter) ([]models.Referral, error) {
	if f.Status != "" && f.Status != models.ReferralStatusOpen && f.Status != models.ReferralStatusClosed {
		return nil, Invalid(fmt.Sprintf("unknown status %q", f.Status))
	}
	if f.Category != "" && !ValidCategory(f.Category) {
		return nil, Invalid(fmt.Sprintf("unknown category %q", f.Category))
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}

	referrals, err := s.store.ListReferrals(ctx, f)
	if err != nil {
		return nil, Unexpected("failed to fetch referrals", err)
	}
	return referrals, nil
}

func (s *ReferralService) Get(ctx context.Context, actorID, referralID uint) (*ReferralDetail, error) {
	referral, err := s.store.GetReferral(ctx, referralID, false)
	if err != nil {
		return nil, notFoundOr(err, "referral not found", "failed to load referral")
	}
	claims, err := s.store.ListClaims(ctx, referralID)
	if err != nil {
		return nil, Unexpected("failed to fetch claims", err)
	}
	messages, err := s.store.ListReferralMessages(ctx, referralID)
	if err != nil {
		return nil, Unexpected("failed to fetch messages", err)
	}

	return &ReferralDetail{
		Referral: *referral,
		Claims:   visibleClaims(referral, claims, actorID),
		Messages: visibleMessages(referral, claims, messages, actorID),
	}, nil
}

func (s *ReferralService) ListClaims(ctx context.Context, actorID, referralID uint) ([]models.Claim, error) {
	referral, err := s.store.GetReferral(ctx, referralID, false)
	if err != nil {
		return nil, notFoundOr(err, "referral not found", "failed to load referral")
	}
	claims, err := s.store.ListClaims(ctx, referralID)
	if err != nil {
		return nil, Unexpected("failed to fetch claims", err)
	}
	return visibleClaims(referral, claims, actorID), nil
}

// Claim requests ownership of an open referral on behalf of actorID. The
// optional note is kept on the claim and sent to the creator as a private
// message.
func (s *ReferralService) Claim(ctx context.Context, actorID, referralID uint, note string) (*models.Claim, error) {
	note = strings.TrimSpace(note)

	var (
		claim    *models.Claim
		referral *models.Referral
	)
	err := s.store.WithTx(ctx, func(tx ReferralStore) error {
		r, err := tx.GetReferral(ctx, referralID, true)
		if err != nil {
			return notFoundOr(err, "referral not found", "failed to load referral")
		}
		if !r.IsOpen() {
			return InvalidState("referral is not open")
		}
		if r.CreatorID == actorID {
			return Forbidden("you cannot claim your own referral")
		}

		existing, err := tx.FindActiveClaim(ctx, referralID, actorID)
		if err != nil && !errors.Is(err, ErrRecordNotFound) {
			return Unexpected("failed to check existing claims", err)
		}
		if existing != nil {
			return Conflict("you already have an active claim on this referral")
		}

		c := &models.Claim{
			ReferralID: referralID,
			ClaimantID: actorID,
			Status:     models.ClaimStatusRequested,
			Note:       note,
		}
		if err := tx.CreateClaim(ctx, c); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return Conflict("you already have an active claim on this referral")
			}
			return Unexpected("failed to create claim", err)
		}

		claimant, err := tx.GetUser(ctx, actorID)
		if err != nil {
			return notFoundOr(err, "user not found", "failed to load user")
		}
		if err := appendSystemMessage(ctx, tx, referralID, c.ID,
			fmt.Sprintf("%s requested to claim this referral", claimant.Name)); err != nil {
			return err
		}
		if note != "" {
			author := actorID
			claimID := c.ID
			if err := tx.CreateReferralMessage(ctx, &models.ReferralMessage{
				ReferralID: referralID,
				ClaimID:    &claimID,
				AuthorID:   &author,
				Visibility: models.VisibilityPrivate,
				Body:       note,
			}); err != nil {
				return Unexpected("failed to store claim note", err)
			}
		}

		claim, referral = c, r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyUser(referral.CreatorID, EventReferral, ReferralEvent{
		Event:      "claim_requested",
		ReferralID: referral.ID,
		ClaimID:    claim.ID,
		Status:     claim.Status,
		ActorID:    actorID,
	})
	s.mailUser(ctx, referral.CreatorID,
		fmt.Sprintf("New claim on %q", referral.Title),
		fmt.Sprintf("Your referral %q received a new claim. Sign in to review it.", referral.Title))

	return claim, nil
}

// AcceptClaim moves a requested claim to accepted. Other outstanding claims
// on the referral are left as they are.
func (s *ReferralService) AcceptClaim(ctx context.Context, actorID, referralID, claimID uint) (*models.Claim, error) {
	return s.decide(ctx, actorID, referralID, claimID, models.ClaimStatusAccepted)
}

// RejectClaim moves a requested claim to rejected.
func (s *ReferralService) RejectClaim(ctx context.Context, actorID, referralID, claimID uint) (*models.Claim, error) {
	return s.decide(ctx, actorID, referralID, claimID, models.ClaimStatusRejected)
}

func (s *ReferralService) decide(ctx context.Context, actorID, referralID, claimID uint, status string) (*models.Claim, error) {
	var (
		claim    *models.Claim
		referral *models.Referral
	)
	err := s.store.WithTx(ctx, func(tx ReferralStore) error {
		r, err := tx.GetReferral(ctx, referralID, true)
		if err != nil {
			return notFoundOr(err, "referral not found", "failed to load referral")
		}
		if r.CreatorID != actorID {
			return Forbidden("only the referral creator can accept or reject claims")
		}

		c, err := tx.GetClaim(ctx, referralID, claimID, true)
		if err != nil {
			return notFoundOr(err, "claim not found", "failed to load claim")
		}
		if c.Status != models.ClaimStatusRequested {
			return InvalidState(fmt.Sprintf("claim is %s, not %s", c.Status, models.ClaimStatusRequested))
		}

		decidedAt := s.now()
		c.Status = status
		c.DecidedAt = &decidedAt
		if err := tx.SaveClaim(ctx, c); err != nil {
			return Unexpected("failed to update claim", err)
		}
		if err := appendSystemMessage(ctx, tx, referralID, c.ID,
			fmt.Sprintf("Claim #%d was %s", c.ID, status)); err != nil {
			return err
		}

		claim, referral = c, r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyUser(claim.ClaimantID, EventReferral, ReferralEvent{
		Event:      "claim_" + status,
		ReferralID: referral.ID,
		ClaimID:    claim.ID,
		Status:     claim.Status,
		ActorID:    actorID,
	})
	s.mailUser(ctx, claim.ClaimantID,
		fmt.Sprintf("Your claim on %q was %s", referral.Title, status),
		fmt.Sprintf("The creator of %q %s your claim.", referral.Title, status))

	return claim, nil
}

// Close marks a referral closed. Claims and messages are kept.
func (s *ReferralService) Close(ctx context.Context, actorID, referralID uint) (*models.Referral, error) {
	var (
		referral *models.Referral
		active   []models.Claim
	)
	err := s.store.WithTx(ctx, func(tx ReferralStore) error {
		r, err := tx.GetReferral(ctx, referralID, true)
		if err != nil {
			return notFoundOr(err, "referral not found", "failed to load referral")
		}
		if r.CreatorID != actorID {
			return Forbidden("only the referral creator can close it")
		}
		if !r.IsOpen() {
			return InvalidState("referral is already closed")
		}

		closedAt := s.now()
		r.Status = models.ReferralStatusClosed
		r.ClosedAt = &closedAt
		if err := tx.SaveReferral(ctx, r); err != nil {
			return Unexpected("failed to close referral", err)
		}
		if err := appendSystemMessage(ctx, tx, referralID, 0, "Referral was closed"); err != nil {
			return err
		}

		claims, err := tx.ListClaims(ctx, referralID)
		if err != nil {
			return Unexpected("failed to fetch claims", err)
		}
		for _, c := range claims {
			if c.IsActive() {
				active = append(active, c)
			}
		}

		referral = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range active {
		s.notifier.NotifyUser(c.ClaimantID, EventReferral, ReferralEvent{
			Event:      "referral_closed",
			ReferralID: referral.ID,
			ClaimID:    c.ID,
			Status:     referral.Status,
			ActorID:    actorID,
		})
		s.mailUser(ctx, c.ClaimantID,
			fmt.Sprintf("%q was closed", referral.Title),
			fmt.Sprintf("The referral %q you claimed has been closed by its creator.", referral.Title))
	}

	return referral, nil
}

func (s *ReferralService) PostMessage(ctx context.Context, actorID, referralID uint, in PostReferralMessageInput) (*models.ReferralMessage, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, Invalid("message body is required")
	}
	visibility := in.Visibility
	if visibility == "" {
		visibility = models.VisibilityPublic
	}
	if visibility != models.VisibilityPublic && visibility != models.VisibilityPrivate {
		return nil, Invalid(fmt.Sprintf("visibility must be %s or %s", models.VisibilityPublic, models.VisibilityPrivate))
	}

	referral, err := s.store.GetReferral(ctx, referralID, false)
	if err != nil {
		return nil, notFoundOr(err, "referral not found", "failed to load referral")
	}

	author := actorID
	message := &models.ReferralMessage{
		ReferralID: referralID,
		AuthorID:   &author,
		Visibility: visibility,
		Body:       body,
	}

	recipient := referral.CreatorID
	if visibility == models.VisibilityPrivate {
		claim, err := s.privateMessageClaim(ctx, referral, actorID, in.ClaimID)
		if err != nil {
			return nil, err
		}
		claimID := claim.ID
		message.ClaimID = &claimID
		if actorID == referral.CreatorID {
			recipient = claim.ClaimantID
		}
	}

	if err := s.store.CreateReferralMessage(ctx, message); err != nil {
		return nil, Unexpected("failed to create message", err)
	}

	if recipient != actorID {
		s.notifier.NotifyUser(recipient, EventReferral, ReferralEvent{
			Event:      "message_posted",
			ReferralID: referralID,
			Status:     referral.Status,
			ActorID:    actorID,
		})
	}
	return message, nil
}

// privateMessageClaim resolves which claim a private message addresses. The
// creator must name the claim; a claimant defaults to their active claim.
func (s *ReferralService) privateMessageClaim(ctx context.Context, referral *models.Referral, actorID uint, claimID *uint) (*models.Claim, error) {
	if actorID == referral.CreatorID {
		if claimID == nil {
			return nil, Invalid("claim_id is required for private messages from the creator")
		}
		claim, err := s.store.GetClaim(ctx, referral.ID, *claimID, false)
		if err != nil {
			return nil, notFoundOr(err, "claim not found", "failed to load claim")
		}
		return claim, nil
	}

	if claimID != nil {
		claim, err := s.store.GetClaim(ctx, referral.ID, *claimID, false)
		if err != nil {
			return nil, notFoundOr(err, "claim not found", "failed to load claim")
		}
		if claim.ClaimantID != actorID {
			return nil, Forbidden("you can only post private messages on your own claim")
		}
		return claim, nil
	}

	claim, err := s.store.FindActiveClaim(ctx, referral.ID, actorID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, Forbidden("only the creator and claimants can post private messages")
		}
		return nil, Unexpected("failed to load claim", err)
	}
	return claim, nil
}

func (s *ReferralService) ListMessages(ctx context.Context, actorID, referralID uint) ([]models.ReferralMessage, error) {
	referral, err := s.store.GetReferral(ctx, referralID, false)
	if err != nil {
		return nil, notFoundOr(err, "referral not found", "failed to load referral")
	}
	claims, err := s.store.ListClaims(ctx, referralID)
	if err != nil {
		return nil, Unexpected("failed to fetch claims", err)
	}
	messages, err := s.store.ListReferralMessages(ctx, referralID)
	if err != nil {
		return nil, Unexpected("failed to fetch messages", err)
	}
	return visibleMessages(referral, claims, messages, actorID), nil
}

func (s *ReferralService) mailUser(ctx context.Context, userID uint, subject, body string) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		log.Printf("referral mail: failed to load user %d: %v", userID, err)
		return
	}
	if user.Email == "" {
		return
	}
	if err := s.mailer.Send(user.Email, subject, body); err != nil {
		log.Printf("referral mail: failed to send to user %d: %v", userID, err)
	}
}

func appendSystemMessage(ctx context.Context, tx ReferralStore, referralID, claimID uint, body string) error {
	message := &models.ReferralMessage{
		ReferralID: referralID,
		Visibility: models.VisibilitySystem,
		Body:       body,
	}
	if claimID != 0 {
		message.ClaimID = &claimID
	}
	if err := tx.CreateReferralMessage(ctx, message); err != nil {
		return Unexpected("failed to record status change", err)
	}
	return nil
}

// visibleClaims returns every claim to the creator and only their own claims
// to anyone else.
func visibleClaims(referral *models.Referral, claims []models.Claim, viewer uint) []models.Claim {
	if viewer == referral.CreatorID {
		return claims
	}
	out := make([]models.Claim, 0)
	for _, c := range claims {
		if c.ClaimantID == viewer {
			out = append(out, c)
		}
	}
	return out
}

// visibleMessages drops private messages the viewer is not a party to.
func visibleMessages(referral *models.Referral, claims []models.Claim, messages []models.ReferralMessage, viewer uint) []models.ReferralMessage {
	claimants := make(map[uint]uint, len(claims))
	for _, c := range claims {
		claimants[c.ID] = c.ClaimantID
	}

	out := make([]models.ReferralMessage, 0, len(messages))
	for _, m := range messages {
		if m.Visibility != models.VisibilityPrivate {
			out = append(out, m)
			continue
		}
		switch {
		case viewer == referral.CreatorID:
		case m.AuthorID != nil && *m.AuthorID == viewer:
		case m.ClaimID != nil && claimants[*m.ClaimID] == viewer:
		default:
			continue
		}
		out = append(out, m)
	}
	return out
}
