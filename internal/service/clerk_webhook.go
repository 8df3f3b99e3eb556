package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	svix "github.com/svix/svix-webhooks/go"
)

const ClerkEventUserCreated = "user.created"

// ClerkEvent is a verified Clerk webhook. User fields are only set for user.created.
type ClerkEvent struct {
	Type   string
	MsgID  string
	UserID string
	Email  string
	Name   string
}

// ClerkVerifier checks Svix signatures on Clerk webhooks.
type ClerkVerifier interface {
	Verify(payload []byte, headers http.Header) (*ClerkEvent, error)
}

type clerkVerifier struct {
	wh *svix.Webhook
}

func NewClerkVerifier(secret string) (ClerkVerifier, error) {
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("create svix webhook verifier: %w", err)
	}
	return &clerkVerifier{wh: wh}, nil
}

type clerkEnvelope struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		FirstName      string `json:"first_name"`
		LastName       string `json:"last_name"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

func (v *clerkVerifier) Verify(payload []byte, headers http.Header) (*ClerkEvent, error) {
	if headers.Get("svix-id") == "" || headers.Get("svix-timestamp") == "" || headers.Get("svix-signature") == "" {
		return nil, fmt.Errorf("%w: missing svix headers", ErrInvalidSignature)
	}
	if err := v.wh.Verify(payload, headers); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var env clerkEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	evt := &ClerkEvent{Type: env.Type, MsgID: headers.Get("svix-id")}
	if env.Type != ClerkEventUserCreated {
		return evt, nil
	}
	if env.Data.ID == "" {
		return nil, fmt.Errorf("%w: user.created without user id", ErrMalformedEvent)
	}
	evt.UserID = env.Data.ID
	if len(env.Data.EmailAddresses) > 0 {
		evt.Email = env.Data.EmailAddresses[0].EmailAddress
	}
	evt.Name = strings.TrimSpace(env.Data.FirstName + " " + env.Data.LastName)
	return evt, nil
}
