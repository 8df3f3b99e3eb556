package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"codedesk/internal/middleware"
	"codedesk/internal/model"
	"codedesk/internal/service"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// authed builds a request as if AuthMiddleware had accepted a token for userID.
func authed(method, target, body, userID string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, userID))
	}
	return req
}

type fakeBilling struct {
	checkoutFunc func(email, userID string) (*service.CheckoutSession, error)
	verifyFunc   func(sessionID, callerID string) (*service.VerifyResult, error)
}

func (f *fakeBilling) CreateCheckoutSession(_ context.Context, email, userID string) (*service.CheckoutSession, error) {
	return f.checkoutFunc(email, userID)
}

func (f *fakeBilling) VerifyPaymentAndUpgrade(_ context.Context, sessionID, callerID string) (*service.VerifyResult, error) {
	return f.verifyFunc(sessionID, callerID)
}

type fakeUsers struct {
	mu       sync.Mutex
	users    map[string]*model.User
	syncErr  error
	getErr   error
	syncCall int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*model.User)}
}

func (f *fakeUsers) Sync(_ context.Context, externalID, email, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncCall++
	if f.syncErr != nil {
		return false, f.syncErr
	}
	if _, ok := f.users[externalID]; ok {
		return false, nil
	}
	f.users[externalID] = &model.User{UserID: externalID, Email: email, Name: name}
	return true, nil
}

func (f *fakeUsers) Get(_ context.Context, externalID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[externalID]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	return u, nil
}

type fakeAssistant struct {
	code string
	err  error
	args []string
}

func (f *fakeAssistant) Assist(_ context.Context, userID, userPrompt, currentCode, language string) (string, error) {
	f.args = []string{userID, userPrompt, currentCode, language}
	return f.code, f.err
}

// fakeEntitlements records grants made through the real StripeService.
type fakeEntitlements struct {
	mu     sync.Mutex
	grants []service.Identity
	err    error
}

func (f *fakeEntitlements) GrantPro(_ context.Context, identity service.Identity, _ service.Billing, _ string) (*service.GrantResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.grants = append(f.grants, identity)
	return &service.GrantResult{User: &model.User{UserID: identity.ExternalID, IsPro: true}}, nil
}

func (f *fakeEntitlements) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.grants)
}

type recordingArchive struct {
	mu   sync.Mutex
	keys []string
}

func (a *recordingArchive) Store(_ context.Context, provider, eventID string, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, provider+"/"+eventID)
	return nil
}

var errStoreDown = errors.New("store unavailable")

func httptestBody(b []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(b))
}
