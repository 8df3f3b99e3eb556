package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"codedesk/internal/model"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
)

// fakeUserRepo mirrors the single-statement semantics of the Postgres repository under one lock.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User // keyed by external id
	seq   int
	err   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func cloneUser(u *model.User) *model.User {
	c := *u
	if u.ProSince != nil {
		t := *u.ProSince
		c.ProSince = &t
	}
	if u.StripeCustomerID != nil {
		s := *u.StripeCustomerID
		c.StripeCustomerID = &s
	}
	if u.StripeSubscriptionID != nil {
		s := *u.StripeSubscriptionID
		c.StripeSubscriptionID = &s
	}
	return &c
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *fakeUserRepo) insert(u *model.User) *model.User {
	r.seq++
	c := cloneUser(u)
	c.ID = uuid.NewString()
	// Distinct creation times keep "oldest first" deterministic.
	c.CreatedAt = time.Date(2026, 1, 1, 0, 0, r.seq, 0, time.UTC)
	c.UpdatedAt = c.CreatedAt
	r.users[c.UserID] = c
	return c
}

func applyGrant(u *model.User, grant model.ProGrant) {
	u.IsPro = true
	if u.ProSince == nil {
		t := grant.GrantedAt
		u.ProSince = &t
	}
	u.StripeCustomerID = nullable(grant.StripeCustomerID)
	u.StripeSubscriptionID = nullable(grant.StripeSubscriptionID)
}

func (r *fakeUserRepo) CreateUserIfNotExists(_ context.Context, u *model.User) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if _, ok := r.users[u.UserID]; ok {
		return false, nil
	}
	r.insert(u)
	return true, nil
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, userID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if u, ok := r.users[userID]; ok {
		return cloneUser(u), nil
	}
	return nil, nil
}

func (r *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var found *model.User
	for _, u := range r.users {
		if !strings.EqualFold(u.Email, email) {
			continue
		}
		if found == nil || u.CreatedAt.Before(found.CreatedAt) {
			found = u
		}
	}
	if found == nil {
		return nil, nil
	}
	return cloneUser(found), nil
}

func (r *fakeUserRepo) GetUserByStripeCustomerID(_ context.Context, customerID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.StripeCustomerID != nil && *u.StripeCustomerID == customerID {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) UpsertProUser(_ context.Context, u *model.User, grant model.ProGrant) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	existing, ok := r.users[u.UserID]
	if !ok {
		existing = r.insert(u)
	}
	applyGrant(existing, grant)
	return cloneUser(existing), nil
}

func (r *fakeUserRepo) GrantProByInternalID(_ context.Context, id string, grant model.ProGrant) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.ID == id {
			applyGrant(u, grant)
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// fakeGateway is a StripeGateway backed by function fields.
type fakeGateway struct {
	mu         sync.Mutex
	getFunc    func(id string) (*stripe.CheckoutSession, error)
	newFunc    func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	eventFunc  func(payload []byte, sig string) (stripe.Event, error)
	newCalls   int
	lastParams *stripe.CheckoutSessionParams
}

func (g *fakeGateway) ConstructEvent(payload []byte, sig string) (stripe.Event, error) {
	if g.eventFunc == nil {
		return stripe.Event{}, ErrInvalidSignature
	}
	return g.eventFunc(payload, sig)
}

func (g *fakeGateway) GetCheckoutSession(id string) (*stripe.CheckoutSession, error) {
	if g.getFunc == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return g.getFunc(id)
}

func (g *fakeGateway) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	g.mu.Lock()
	g.newCalls++
	g.lastParams = params
	g.mu.Unlock()
	if g.newFunc == nil {
		return &stripe.CheckoutSession{ID: "cs_new", URL: "https://checkout.stripe.com/c/pay/cs_new"}, nil
	}
	return g.newFunc(params)
}

type recordedMessage struct {
	topic   string
	payload []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []recordedMessage
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, recordedMessage{topic: topic, payload: payload})
	return fmt.Sprintf("msg-%d", len(p.messages)), nil
}

// stepClock returns strictly increasing times so each grant has its own timestamp.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newStepClock() *stepClock {
	return &stepClock{cur: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

var errStore = errors.New("store unavailable")
