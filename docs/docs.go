// Package docs registers the OpenAPI document served at /swagger/doc.json.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/users/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Get the authenticated user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.UserResponseDTO"}},
                    "401": {"description": "unauthorized", "schema": {"type": "string"}}
                }
            }
        },
        "/billing/checkout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["billing"],
                "summary": "Create a Stripe Checkout session",
                "parameters": [{"name": "checkout", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.CheckoutRequestDTO"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.CheckoutResponseDTO"}},
                    "400": {"description": "invalid request payload", "schema": {"type": "string"}},
                    "500": {"description": "billing is not configured", "schema": {"type": "string"}},
                    "503": {"description": "payment provider unavailable", "schema": {"type": "string"}}
                }
            }
        },
        "/billing/verify": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["billing"],
                "summary": "Verify a checkout session and upgrade the caller",
                "parameters": [{"name": "verify", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.VerifyPaymentRequestDTO"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.VerifyPaymentResponseDTO"}},
                    "403": {"description": "session belongs to another user", "schema": {"type": "string"}},
                    "404": {"description": "session not found", "schema": {"type": "string"}},
                    "503": {"description": "payment provider unavailable, retry", "schema": {"type": "string"}}
                }
            }
        },
        "/assistant": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["assistant"],
                "summary": "Ask the AI assistant to edit code",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.AssistantRequestDTO"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.AssistantResponseDTO"}},
                    "400": {"description": "invalid request payload", "schema": {"type": "string"}}
                }
            }
        },
        "/webhooks/stripe": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Receive a Stripe webhook",
                "parameters": [{"name": "Stripe-Signature", "in": "header", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.WebhookAckDTO"}},
                    "400": {"description": "invalid signature or payload", "schema": {"type": "string"}},
                    "413": {"description": "payload too large", "schema": {"type": "string"}},
                    "500": {"description": "failed to process event", "schema": {"type": "string"}}
                }
            }
        },
        "/webhooks/clerk": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["webhooks"],
                "summary": "Receive a Clerk webhook",
                "parameters": [
                    {"name": "svix-id", "in": "header", "required": true, "type": "string"},
                    {"name": "svix-timestamp", "in": "header", "required": true, "type": "string"},
                    {"name": "svix-signature", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.WebhookAckDTO"}},
                    "400": {"description": "invalid signature or payload", "schema": {"type": "string"}},
                    "500": {"description": "failed to sync user", "schema": {"type": "string"}}
                }
            }
        }
    },
    "definitions": {
        "dto.UserResponseDTO": {
            "type": "object",
            "properties": {
                "userId": {"type": "string"},
                "email": {"type": "string"},
                "name": {"type": "string"},
                "isPro": {"type": "boolean"},
                "proSince": {"type": "string"},
                "stripeCustomerId": {"type": "string"},
                "stripeSubscriptionId": {"type": "string"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "dto.CheckoutRequestDTO": {
            "type": "object",
            "required": ["email"],
            "properties": {"email": {"type": "string"}}
        },
        "dto.CheckoutResponseDTO": {
            "type": "object",
            "properties": {"sessionId": {"type": "string"}, "url": {"type": "string"}}
        },
        "dto.VerifyPaymentRequestDTO": {
            "type": "object",
            "required": ["sessionId"],
            "properties": {"sessionId": {"type": "string"}}
        },
        "dto.VerifyPaymentResponseDTO": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "isPaid": {"type": "boolean"}}
        },
        "dto.AssistantRequestDTO": {
            "type": "object",
            "required": ["userPrompt", "language"],
            "properties": {
                "userPrompt": {"type": "string", "maxLength": 4000},
                "currentCode": {"type": "string", "maxLength": 200000},
                "language": {"type": "string", "maxLength": 40}
            }
        },
        "dto.AssistantResponseDTO": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "code": {"type": "string"}, "error": {"type": "string"}}
        },
        "dto.WebhookAckDTO": {
            "type": "object",
            "properties": {"received": {"type": "boolean"}, "duplicate": {"type": "boolean"}, "message": {"type": "string"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Codedesk API",
	Description:      "Code editor backend: identity sync, Stripe checkout and Pro entitlement, AI code assistance.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
