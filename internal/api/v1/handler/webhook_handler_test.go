package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"codedesk/internal/api/v1/dto"
	"codedesk/internal/config"
	"codedesk/internal/repository"
	"codedesk/internal/service"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	svix "github.com/svix/svix-webhooks/go"
)

const (
	testStripeSecret = "whsec_test_handler"
	testClerkSecret  = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"
)

type webhookFixture struct {
	handler      *WebhookHandler
	entitlements *fakeEntitlements
	users        *fakeUsers
	archive      *recordingArchive
	mux          *http.ServeMux
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	entitlements := &fakeEntitlements{}
	cfg := &config.Config{StripePriceID: "price_1", StripeCheckoutMode: "payment", AppURL: "http://localhost:3000"}
	payments := service.NewStripeService(cfg, service.NewStripeGateway("sk_test_123", testStripeSecret), entitlements, zerolog.Nop())
	clerk, err := service.NewClerkVerifier(testClerkSecret)
	if err != nil {
		t.Fatalf("NewClerkVerifier: %v", err)
	}
	users := newFakeUsers()
	archive := &recordingArchive{}
	dedup := service.NewWebhookDeduper(repository.NewMemoryWebhookEventRepo(time.Hour), zerolog.Nop())

	h := NewWebhookHandler(payments, clerk, users, dedup, archive, zerolog.Nop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return &webhookFixture{handler: h, entitlements: entitlements, users: users, archive: archive, mux: mux}
}

func (f *webhookFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func stripeEvent(t *testing.T, id, eventType string, object map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(object)
	if err != nil {
		t.Fatalf("marshal object: %v", err)
	}
	payload, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]json.RawMessage{"object": raw},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func paidCheckout(userID string) map[string]any {
	return map[string]any{
		"id":             "cs_1",
		"object":         "checkout.session",
		"mode":           "payment",
		"payment_status": "paid",
		"customer_email": "ada@x.com",
		"metadata":       map[string]string{"userId": userID},
	}
}

func stripeRequest(payload []byte, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	header := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	}).Header
	req.Header.Set("Stripe-Signature", header)
	return req
}

func clerkRequest(t *testing.T, msgID string, payload []byte) *http.Request {
	t.Helper()
	wh, err := svix.NewWebhook(testClerkSecret)
	if err != nil {
		t.Fatalf("svix.NewWebhook: %v", err)
	}
	now := time.Now()
	sig, err := wh.Sign(msgID, now, payload)
	if err != nil {
		t.Fatalf("sign payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(payload))
	req.Header.Set("svix-id", msgID)
	req.Header.Set("svix-timestamp", strconv.FormatInt(now.Unix(), 10))
	req.Header.Set("svix-signature", sig)
	return req
}

func decodeAck(t *testing.T, rec *httptest.ResponseRecorder) dto.WebhookAckDTO {
	t.Helper()
	var ack dto.WebhookAckDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack %q: %v", rec.Body.String(), err)
	}
	return ack
}

func TestStripeWebhook_GrantsOnce(t *testing.T) {
	f := newWebhookFixture(t)
	payload := stripeEvent(t, "evt_1", "checkout.session.completed", paidCheckout("u_1"))

	rec := f.do(stripeRequest(payload, testStripeSecret))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ack := decodeAck(t, rec); !ack.Received || ack.Duplicate {
		t.Errorf("unexpected ack %+v", ack)
	}
	if f.entitlements.count() != 1 || f.entitlements.grants[0].ExternalID != "u_1" {
		t.Fatalf("expected one grant for u_1, got %+v", f.entitlements.grants)
	}

	rec = f.do(stripeRequest(payload, testStripeSecret))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on redelivery, got %d", rec.Code)
	}
	if ack := decodeAck(t, rec); !ack.Duplicate {
		t.Error("expected redelivery to be reported as duplicate")
	}
	if f.entitlements.count() != 1 {
		t.Fatalf("expected redelivery not to grant again, got %d grants", f.entitlements.count())
	}
	if len(f.archive.keys) != 2 || f.archive.keys[0] != "stripe/evt_1" {
		t.Errorf("expected both deliveries archived, got %v", f.archive.keys)
	}
}

func TestStripeWebhook_Rejections(t *testing.T) {
	f := newWebhookFixture(t)
	payload := stripeEvent(t, "evt_1", "checkout.session.completed", paidCheckout("u_1"))

	tampered := stripeRequest(payload, testStripeSecret)
	tampered.Body = httptestBody(bytes.Replace(payload, []byte("u_1"), []byte("u_2"), 1))

	noHeader := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"wrong secret", stripeRequest(payload, "whsec_other"), http.StatusBadRequest},
		{"tampered body", tampered, http.StatusBadRequest},
		{"missing header", noHeader, http.StatusBadRequest},
		{"wrong method", httptest.NewRequest(http.MethodGet, "/webhooks/stripe", nil), http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := f.do(tt.req); rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
	if f.entitlements.count() != 0 {
		t.Fatal("rejected webhooks must not grant")
	}
}

func TestStripeWebhook_TooLarge(t *testing.T) {
	f := newWebhookFixture(t)
	payload := []byte(`{"pad":"` + strings.Repeat("a", maxWebhookBodyBytes) + `"}`)
	if rec := f.do(stripeRequest(payload, testStripeSecret)); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestStripeWebhook_UnknownUserIsAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)
	f.entitlements.err = service.ErrUserNotFound
	payload := stripeEvent(t, "evt_2", "checkout.session.completed", paidCheckout(""))

	rec := f.do(stripeRequest(payload, testStripeSecret))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ack := decodeAck(t, rec); ack.Message != "user not found" {
		t.Errorf("expected user not found message, got %+v", ack)
	}
}

func TestStripeWebhook_FailureAllowsRetry(t *testing.T) {
	f := newWebhookFixture(t)
	f.entitlements.err = errStoreDown
	payload := stripeEvent(t, "evt_3", "checkout.session.completed", paidCheckout("u_1"))

	if rec := f.do(stripeRequest(payload, testStripeSecret)); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	f.entitlements.err = nil
	rec := f.do(stripeRequest(payload, testStripeSecret))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected retry to succeed, got %d", rec.Code)
	}
	if ack := decodeAck(t, rec); ack.Duplicate {
		t.Error("retry after failure must not be treated as duplicate")
	}
	if f.entitlements.count() != 1 {
		t.Fatalf("expected one grant after retry, got %d", f.entitlements.count())
	}
}

func TestStripeWebhook_NonGrantingEvents(t *testing.T) {
	f := newWebhookFixture(t)
	unpaid := paidCheckout("u_1")
	unpaid["payment_status"] = "unpaid"

	events := []struct {
		id, typ string
		obj     map[string]any
	}{
		{"evt_a", "checkout.session.completed", unpaid},
		{"evt_b", "checkout.session.async_payment_failed", paidCheckout("u_1")},
		{"evt_c", "customer.subscription.deleted", map[string]any{"id": "sub_1", "object": "subscription", "status": "canceled"}},
		{"evt_d", "invoice.paid", map[string]any{"id": "in_1", "object": "invoice"}},
	}
	for _, e := range events {
		rec := f.do(stripeRequest(stripeEvent(t, e.id, e.typ, e.obj), testStripeSecret))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", e.typ, rec.Code)
		}
	}
	if f.entitlements.count() != 0 {
		t.Fatalf("expected no grants, got %d", f.entitlements.count())
	}
}

func TestClerkWebhook_SyncsUserOnce(t *testing.T) {
	f := newWebhookFixture(t)
	payload := []byte(`{"type":"user.created","data":{"id":"user_1","first_name":"Ada","last_name":"Lovelace","email_addresses":[{"email_address":"ada@x.com"}]}}`)

	rec := f.do(clerkRequest(t, "msg_1", payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	u := f.users.users["user_1"]
	if u == nil || u.Email != "ada@x.com" || u.Name != "Ada Lovelace" {
		t.Fatalf("unexpected synced user %+v", u)
	}

	rec = f.do(clerkRequest(t, "msg_1", payload))
	if ack := decodeAck(t, rec); !ack.Duplicate {
		t.Error("expected redelivery to be a duplicate")
	}
	if f.users.syncCall != 1 {
		t.Fatalf("expected one sync call, got %d", f.users.syncCall)
	}
}

func TestClerkWebhook_IgnoresOtherEvents(t *testing.T) {
	f := newWebhookFixture(t)
	payload := []byte(`{"type":"user.updated","data":{"id":"user_1"}}`)

	rec := f.do(clerkRequest(t, "msg_2", payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if f.users.syncCall != 0 {
		t.Fatal("non user.created events must not sync")
	}
}

func TestClerkWebhook_Rejections(t *testing.T) {
	f := newWebhookFixture(t)
	payload := []byte(`{"type":"user.created","data":{"id":"user_1"}}`)

	unsigned := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(payload))
	if rec := f.do(unsigned); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsigned request, got %d", rec.Code)
	}

	tampered := clerkRequest(t, "msg_3", payload)
	tampered.Body = httptestBody([]byte(`{"type":"user.created","data":{"id":"user_2"}}`))
	if rec := f.do(tampered); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for tampered body, got %d", rec.Code)
	}

	f.users.syncErr = errStoreDown
	if rec := f.do(clerkRequest(t, "msg_4", payload)); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when sync fails, got %d", rec.Code)
	}
}
