package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/CUknot/realty_crm/models"
)

var errBoom = errors.New("boom")

// memDB is an in-memory stand-in for postgres shared by the fake stores.
// WithTx snapshots the tables and restores them when fn fails.
type memDB struct {
	mu     sync.Mutex
	nextID uint
	clock  time.Time

	users        map[uint]models.User
	referrals    map[uint]models.Referral
	claims       map[uint]models.Claim
	refMessages  []models.ReferralMessage
	threads      map[uint]models.Thread
	participants map[[2]uint]models.ThreadParticipant
	messages     []models.Message
	contacts     map[uint]models.Contact
	interactions []models.Interaction
	deals        map[uint]models.Deal

	// failOn makes the named method return errBoom.
	failOn string
}

func newMemDB() *memDB {
	return &memDB{
		clock:        time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		users:        map[uint]models.User{},
		referrals:    map[uint]models.Referral{},
		claims:       map[uint]models.Claim{},
		threads:      map[uint]models.Thread{},
		participants: map[[2]uint]models.ThreadParticipant{},
		contacts:     map[uint]models.Contact{},
		deals:        map[uint]models.Deal{},
	}
}

func (db *memDB) id() uint {
	db.nextID++
	return db.nextID
}

func (db *memDB) tick() time.Time {
	db.clock = db.clock.Add(time.Second)
	return db.clock
}

func (db *memDB) fail(method string) error {
	if db.failOn == method {
		return errBoom
	}
	return nil
}

func (db *memDB) addUser(name, email string) models.User {
	u := models.User{ID: db.id(), Name: name, Email: email}
	db.users[u.ID] = u
	return u
}

type memSnapshot struct {
	nextID       uint
	users        map[uint]models.User
	referrals    map[uint]models.Referral
	claims       map[uint]models.Claim
	refMessages  []models.ReferralMessage
	threads      map[uint]models.Thread
	participants map[[2]uint]models.ThreadParticipant
	messages     []models.Message
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (db *memDB) snapshot() memSnapshot {
	return memSnapshot{
		nextID:       db.nextID,
		users:        copyMap(db.users),
		referrals:    copyMap(db.referrals),
		claims:       copyMap(db.claims),
		refMessages:  append([]models.ReferralMessage(nil), db.refMessages...),
		threads:      copyMap(db.threads),
		participants: copyMap(db.participants),
		messages:     append([]models.Message(nil), db.messages...),
	}
}

func (db *memDB) restore(s memSnapshot) {
	db.nextID = s.nextID
	db.users = s.users
	db.referrals = s.referrals
	db.claims = s.claims
	db.refMessages = s.refMessages
	db.threads = s.threads
	db.participants = s.participants
	db.messages = s.messages
}

func (db *memDB) getUser(id uint) (*models.User, error) {
	u, ok := db.users[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &u, nil
}

// ---- referrals

type fakeReferralStore struct{ db *memDB }

func (s fakeReferralStore) WithTx(ctx context.Context, fn func(tx ReferralStore) error) error {
	snap := s.db.snapshot()
	if err := fn(s); err != nil {
		s.db.restore(snap)
		return err
	}
	return nil
}

func (s fakeReferralStore) CreateReferral(ctx context.Context, r *models.Referral) error {
	if err := s.db.fail("CreateReferral"); err != nil {
		return err
	}
	r.ID = s.db.id()
	r.CreatedAt = s.db.tick()
	r.UpdatedAt = r.CreatedAt
	s.db.referrals[r.ID] = *r
	return nil
}

func (s fakeReferralStore) GetReferral(ctx context.Context, id uint, forUpdate bool) (*models.Referral, error) {
	if err := s.db.fail("GetReferral"); err != nil {
		return nil, err
	}
	r, ok := s.db.referrals[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &r, nil
}

func (s fakeReferralStore) ListReferrals(ctx context.Context, f ReferralFilter) ([]models.Referral, error) {
	out := []models.Referral{}
	for _, r := range s.db.referrals {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Category != "" && r.Category != f.Category {
			continue
		}
		if f.CreatorID != 0 && r.CreatorID != f.CreatorID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s fakeReferralStore) SaveReferral(ctx context.Context, r *models.Referral) error {
	if err := s.db.fail("SaveReferral"); err != nil {
		return err
	}
	r.UpdatedAt = s.db.tick()
	s.db.referrals[r.ID] = *r
	return nil
}

func (s fakeReferralStore) CreateClaim(ctx context.Context, c *models.Claim) error {
	if err := s.db.fail("CreateClaim"); err != nil {
		return err
	}
	for _, existing := range s.db.claims {
		if existing.ReferralID == c.ReferralID && existing.ClaimantID == c.ClaimantID && existing.IsActive() {
			return ErrDuplicate
		}
	}
	c.ID = s.db.id()
	c.CreatedAt = s.db.tick()
	c.UpdatedAt = c.CreatedAt
	s.db.claims[c.ID] = *c
	return nil
}

func (s fakeReferralStore) GetClaim(ctx context.Context, referralID, claimID uint, forUpdate bool) (*models.Claim, error) {
	c, ok := s.db.claims[claimID]
	if !ok || c.ReferralID != referralID {
		return nil, ErrRecordNotFound
	}
	return &c, nil
}

func (s fakeReferralStore) FindActiveClaim(ctx context.Context, referralID, claimantID uint) (*models.Claim, error) {
	for _, c := range s.db.claims {
		if c.ReferralID == referralID && c.ClaimantID == claimantID && c.IsActive() {
			return &c, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s fakeReferralStore) ListClaims(ctx context.Context, referralID uint) ([]models.Claim, error) {
	out := []models.Claim{}
	for _, c := range s.db.claims {
		if c.ReferralID == referralID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s fakeReferralStore) SaveClaim(ctx context.Context, c *models.Claim) error {
	if err := s.db.fail("SaveClaim"); err != nil {
		return err
	}
	c.UpdatedAt = s.db.tick()
	s.db.claims[c.ID] = *c
	return nil
}

func (s fakeReferralStore) CreateReferralMessage(ctx context.Context, m *models.ReferralMessage) error {
	if err := s.db.fail("CreateReferralMessage"); err != nil {
		return err
	}
	m.ID = s.db.id()
	m.CreatedAt = s.db.tick()
	s.db.refMessages = append(s.db.refMessages, *m)
	return nil
}

func (s fakeReferralStore) ListReferralMessages(ctx context.Context, referralID uint) ([]models.ReferralMessage, error) {
	out := []models.ReferralMessage{}
	for _, m := range s.db.refMessages {
		if m.ReferralID == referralID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s fakeReferralStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.db.getUser(id)
}

// ---- inbox

type fakeInboxStore struct{ db *memDB }

func (s fakeInboxStore) WithTx(ctx context.Context, fn func(tx InboxStore) error) error {
	snap := s.db.snapshot()
	if err := fn(s); err != nil {
		s.db.restore(snap)
		return err
	}
	return nil
}

func (s fakeInboxStore) CreateThread(ctx context.Context, t *models.Thread) error {
	t.ID = s.db.id()
	t.CreatedAt = t.LastMessageAt
	s.db.threads[t.ID] = *t
	return nil
}

func (s fakeInboxStore) AddParticipant(ctx context.Context, p *models.ThreadParticipant) error {
	if err := s.db.fail("AddParticipant"); err != nil {
		return err
	}
	s.db.participants[[2]uint{p.ThreadID, p.UserID}] = *p
	return nil
}

func (s fakeInboxStore) GetThread(ctx context.Context, id uint) (*models.Thread, error) {
	t, ok := s.db.threads[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &t, nil
}

func (s fakeInboxStore) ListParticipants(ctx context.Context, threadID uint) ([]models.ThreadParticipant, error) {
	out := []models.ThreadParticipant{}
	for key, p := range s.db.participants {
		if key[0] == threadID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s fakeInboxStore) GetParticipant(ctx context.Context, threadID, userID uint) (*models.ThreadParticipant, error) {
	p, ok := s.db.participants[[2]uint{threadID, userID}]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &p, nil
}

func (s fakeInboxStore) ListThreadSummaries(ctx context.Context, userID uint) ([]ThreadSummary, error) {
	out := []ThreadSummary{}
	for key, p := range s.db.participants {
		if key[1] != userID {
			continue
		}
		thread := s.db.threads[key[0]]
		var unread int64
		for _, m := range s.db.messages {
			if m.ThreadID == thread.ID && m.UserID != userID && m.CreatedAt.After(p.LastReadAt) {
				unread++
			}
		}
		out = append(out, ThreadSummary{Thread: thread, LastReadAt: p.LastReadAt, UnreadCount: unread})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Thread.LastMessageAt.After(out[j].Thread.LastMessageAt) })
	return out, nil
}

func (s fakeInboxStore) ListMessages(ctx context.Context, threadID uint) ([]models.Message, error) {
	out := []models.Message{}
	for _, m := range s.db.messages {
		if m.ThreadID == threadID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s fakeInboxStore) CreateMessage(ctx context.Context, m *models.Message) error {
	if err := s.db.fail("CreateMessage"); err != nil {
		return err
	}
	m.ID = s.db.id()
	s.db.messages = append(s.db.messages, *m)
	return nil
}

func (s fakeInboxStore) TouchThread(ctx context.Context, threadID uint, at time.Time) error {
	t := s.db.threads[threadID]
	t.LastMessageAt = at
	s.db.threads[threadID] = t
	return nil
}

func (s fakeInboxStore) MarkRead(ctx context.Context, threadID, userID uint, at time.Time) error {
	key := [2]uint{threadID, userID}
	p, ok := s.db.participants[key]
	if !ok {
		return ErrRecordNotFound
	}
	p.LastReadAt = at
	s.db.participants[key] = p
	return nil
}

func (s fakeInboxStore) CountUsers(ctx context.Context, ids []uint) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := s.db.users[id]; ok {
			n++
		}
	}
	return n, nil
}

// ---- contacts

type fakeContactStore struct{ db *memDB }

func (s fakeContactStore) CreateContact(ctx context.Context, c *models.Contact) error {
	c.ID = s.db.id()
	s.db.contacts[c.ID] = *c
	return nil
}

func (s fakeContactStore) GetContact(ctx context.Context, ownerID, id uint) (*models.Contact, error) {
	c, ok := s.db.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return nil, ErrRecordNotFound
	}
	return &c, nil
}

func (s fakeContactStore) ListContacts(ctx context.Context, ownerID uint, f ContactFilter) ([]models.Contact, error) {
	out := []models.Contact{}
	q := strings.ToLower(f.Query)
	for _, c := range s.db.contacts {
		if c.OwnerID != ownerID {
			continue
		}
		if f.Stage != "" && c.Stage != f.Stage {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(c.Name), q) && !strings.Contains(c.Email, q) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if f.ByScore && out[i].RelationshipScore != out[j].RelationshipScore {
			return out[i].RelationshipScore > out[j].RelationshipScore
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s fakeContactStore) SaveContact(ctx context.Context, c *models.Contact) error {
	s.db.contacts[c.ID] = *c
	return nil
}

func (s fakeContactStore) DeleteContact(ctx context.Context, ownerID, id uint) error {
	c, ok := s.db.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return ErrRecordNotFound
	}
	delete(s.db.contacts, id)
	return nil
}

func (s fakeContactStore) CreateInteraction(ctx context.Context, i *models.Interaction) error {
	i.ID = s.db.id()
	s.db.interactions = append(s.db.interactions, *i)
	return nil
}

func (s fakeContactStore) CountInteractionsSince(ctx context.Context, contactID uint, since time.Time) (int64, error) {
	var n int64
	for _, i := range s.db.interactions {
		if i.ContactID == contactID && !i.OccurredAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s fakeContactStore) CreateDeal(ctx context.Context, d *models.Deal) error {
	d.ID = s.db.id()
	s.db.deals[d.ID] = *d
	return nil
}

func (s fakeContactStore) GetDeal(ctx context.Context, ownerID, id uint) (*models.Deal, error) {
	d, ok := s.db.deals[id]
	if !ok || d.OwnerID != ownerID {
		return nil, ErrRecordNotFound
	}
	return &d, nil
}

func (s fakeContactStore) ListDeals(ctx context.Context, contactID uint) ([]models.Deal, error) {
	out := []models.Deal{}
	for _, d := range s.db.deals {
		if d.ContactID == contactID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s fakeContactStore) SaveDeal(ctx context.Context, d *models.Deal) error {
	s.db.deals[d.ID] = *d
	return nil
}

// ---- users and sessions

type fakeUserStore struct{ db *memDB }

func (s fakeUserStore) CreateUser(ctx context.Context, u *models.User) error {
	for _, existing := range s.db.users {
		if existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	if err := u.BeforeCreate(nil); err != nil {
		return err
	}
	u.ID = s.db.id()
	s.db.users[u.ID] = *u
	return nil
}

func (s fakeUserStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.db.getUser(id)
}

func (s fakeUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range s.db.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrRecordNotFound
}

type fakeSessions struct {
	sessions map[string]uint
	next     int
}

func (f *fakeSessions) Create(ctx context.Context, userID uint) (string, error) {
	f.next++
	id := strings.Repeat("s", f.next)
	f.sessions[id] = userID
	return id, nil
}

func (f *fakeSessions) Delete(ctx context.Context, id string) error {
	delete(f.sessions, id)
	return nil
}

// ---- side effects

type sentEvent struct {
	UserID    uint
	ThreadID  uint
	EventType string
	Payload   interface{}
}

type recordingNotifier struct {
	events []sentEvent
}

func (n *recordingNotifier) NotifyUser(userID uint, eventType string, payload interface{}) {
	n.events = append(n.events, sentEvent{UserID: userID, EventType: eventType, Payload: payload})
}

func (n *recordingNotifier) BroadcastToThread(threadID uint, eventType string, payload interface{}) {
	n.events = append(n.events, sentEvent{ThreadID: threadID, EventType: eventType, Payload: payload})
}

func (n *recordingNotifier) referralEvents() []ReferralEvent {
	var out []ReferralEvent
	for _, e := range n.events {
		if ev, ok := e.Payload.(ReferralEvent); ok {
			out = append(out, ev)
		}
	}
	return out
}

type sentMail struct {
	To      string
	Subject string
}

type recordingMailer struct {
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject})
	return nil
}
