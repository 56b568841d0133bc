package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CUknot/realty_crm/models"
	"github.com/CUknot/realty_crm/scoring"
)

func newContactService(db *memDB) (*ContactService, *testClock) {
	clock := &testClock{t: time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)}
	svc := NewContactService(fakeContactStore{db: db})
	svc.now = clock.now
	return svc, clock
}

func TestContactScoreProgression(t *testing.T) {
	db := newMemDB()
	svc, clock := newContactService(db)
	ctx := context.Background()
	const owner = uint(1)

	contact, err := svc.Create(ctx, owner, ContactInput{
		Name:           "Dana Homeowner",
		Email:          "Dana@Example.com ",
		Phone:          "555-0100",
		ReferralsGiven: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", contact.Email)
	assert.Equal(t, models.StageLead, contact.Stage)
	assert.Equal(t, 15, contact.RelationshipScore)
	assert.Equal(t, scoring.TierCold, contact.ScoreTier)

	_, err = svc.LogInteraction(ctx, owner, contact.ID, InteractionInput{Kind: models.InteractionCall, Notes: "intro call"})
	require.NoError(t, err)
	stored := db.contacts[contact.ID]
	require.NotNil(t, stored.LastContactedAt)
	assert.Equal(t, clock.t, *stored.LastContactedAt)
	assert.Equal(t, 52, stored.RelationshipScore)
	assert.Equal(t, scoring.TierWarm, stored.ScoreTier)

	// backdated inside the window: counts toward frequency, recency unchanged
	monthAgo := clock.t.Add(-30 * 24 * time.Hour)
	_, err = svc.LogInteraction(ctx, owner, contact.ID, InteractionInput{Kind: models.InteractionMeeting, OccurredAt: &monthAgo})
	require.NoError(t, err)
	stored = db.contacts[contact.ID]
	assert.Equal(t, clock.t, *stored.LastContactedAt)
	assert.Equal(t, 54, stored.RelationshipScore)

	// outside the 90 day window: ignored by frequency
	longAgo := clock.t.Add(-100 * 24 * time.Hour)
	_, err = svc.LogInteraction(ctx, owner, contact.ID, InteractionInput{Kind: models.InteractionNote, OccurredAt: &longAgo})
	require.NoError(t, err)
	assert.Equal(t, 54, db.contacts[contact.ID].RelationshipScore)

	_, err = svc.CreateDeal(ctx, owner, contact.ID, DealInput{Title: "Sold condo", Stage: models.DealClosedWon, ValueCents: 45000000})
	require.NoError(t, err)
	assert.Equal(t, 64, db.contacts[contact.ID].RelationshipScore)

	open, err := svc.CreateDeal(ctx, owner, contact.ID, DealInput{Title: "Buying house"})
	require.NoError(t, err)
	assert.Equal(t, models.DealProspecting, open.Stage)
	assert.Nil(t, open.ClosedAt)
	assert.Equal(t, 69, db.contacts[contact.ID].RelationshipScore)

	won, err := svc.UpdateDealStage(ctx, owner, open.ID, models.DealClosedWon)
	require.NoError(t, err)
	require.NotNil(t, won.ClosedAt)

	result, err := svc.Score(ctx, owner, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, 74, result.Score.Score)
	assert.Equal(t, scoring.TierHot, result.Contact.ScoreTier)
	assert.Equal(t, 20.0, result.Score.Breakdown.Deals)

	_, err = svc.UpdateDealStage(ctx, owner, open.ID, models.DealProspecting)
	assert.Equal(t, KindInvalidState, KindOf(err), "closed deals cannot be reopened")
}

func TestContactValidation(t *testing.T) {
	db := newMemDB()
	svc, clock := newContactService(db)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, ContactInput{Name: ""})
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = svc.Create(ctx, 1, ContactInput{Name: "X", Stage: "vip"})
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = svc.Create(ctx, 1, ContactInput{Name: "X", ReferralsGiven: -2})
	assert.Equal(t, KindValidation, KindOf(err))

	contact, err := svc.Create(ctx, 1, ContactInput{Name: "Eli"})
	require.NoError(t, err)

	future := clock.t.Add(time.Hour)
	_, err = svc.LogInteraction(ctx, 1, contact.ID, InteractionInput{Kind: models.InteractionCall, OccurredAt: &future})
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = svc.LogInteraction(ctx, 1, contact.ID, InteractionInput{Kind: "carrier_pigeon"})
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = svc.CreateDeal(ctx, 1, contact.ID, DealInput{Title: ""})
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = svc.CreateDeal(ctx, 1, contact.ID, DealInput{Title: "Lease", Stage: "maybe"})
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = svc.CreateDeal(ctx, 1, contact.ID, DealInput{Title: "Lease", ValueCents: -1})
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Empty(t, db.interactions)
	assert.Empty(t, db.deals)
}

func TestContactsAreOwnerScoped(t *testing.T) {
	db := newMemDB()
	svc, _ := newContactService(db)
	ctx := context.Background()

	contact, err := svc.Create(ctx, 1, ContactInput{Name: "Fran"})
	require.NoError(t, err)
	deal, err := svc.CreateDeal(ctx, 1, contact.ID, DealInput{Title: "Listing"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, 2, contact.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
	_, err = svc.LogInteraction(ctx, 2, contact.ID, InteractionInput{Kind: models.InteractionCall})
	assert.Equal(t, KindNotFound, KindOf(err))
	_, err = svc.ListDeals(ctx, 2, contact.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
	_, err = svc.UpdateDealStage(ctx, 2, deal.ID, models.DealUnderContract)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, KindNotFound, KindOf(svc.Delete(ctx, 2, contact.ID)))

	require.NoError(t, svc.Delete(ctx, 1, contact.ID))
	_, err = svc.Get(ctx, 1, contact.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestUpdateContactRescores(t *testing.T) {
	db := newMemDB()
	svc, _ := newContactService(db)
	ctx := context.Background()

	contact, err := svc.Create(ctx, 1, ContactInput{Name: "Gus", Email: "gus@example.com", Phone: "555-0101"})
	require.NoError(t, err)
	assert.Equal(t, 10, contact.RelationshipScore)

	empty := ""
	_, err = svc.Update(ctx, 1, contact.ID, ContactUpdate{Name: &empty})
	assert.Equal(t, KindValidation, KindOf(err))
	bad := "vip"
	_, err = svc.Update(ctx, 1, contact.ID, ContactUpdate{Stage: &bad})
	assert.Equal(t, KindValidation, KindOf(err))

	stage := models.StageClient
	referrals := 3
	updated, err := svc.Update(ctx, 1, contact.ID, ContactUpdate{Phone: &empty, Stage: &stage, ReferralsGiven: &referrals})
	require.NoError(t, err)
	assert.Equal(t, models.StageClient, updated.Stage)
	assert.Equal(t, "", updated.Phone)
	// email 5 plus referrals capped at 10
	assert.Equal(t, 15, updated.RelationshipScore)
	assert.Equal(t, "Gus", db.contacts[contact.ID].Name)
}

func TestListContacts(t *testing.T) {
	db := newMemDB()
	svc, _ := newContactService(db)
	ctx := context.Background()

	low, err := svc.Create(ctx, 1, ContactInput{Name: "Hal Low"})
	require.NoError(t, err)
	high, err := svc.Create(ctx, 1, ContactInput{Name: "Ivy High", Email: "ivy@example.com", Phone: "555", ReferralsGiven: 2, Stage: models.StageSphere})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 2, ContactInput{Name: "Someone Else"})
	require.NoError(t, err)

	byScore, err := svc.List(ctx, 1, ContactFilter{ByScore: true})
	require.NoError(t, err)
	require.Len(t, byScore, 2)
	assert.Equal(t, high.ID, byScore[0].ID)
	assert.Equal(t, low.ID, byScore[1].ID)

	sphere, err := svc.List(ctx, 1, ContactFilter{Stage: models.StageSphere})
	require.NoError(t, err)
	require.Len(t, sphere, 1)
	assert.Equal(t, high.ID, sphere[0].ID)

	search, err := svc.List(ctx, 1, ContactFilter{Query: "hal"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, low.ID, search[0].ID)

	_, err = svc.List(ctx, 1, ContactFilter{Stage: "vip"})
	assert.Equal(t, KindValidation, KindOf(err))
}
