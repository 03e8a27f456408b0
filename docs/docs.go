// Package docs registers the OpenAPI description served under /swagger.
// Regenerate with `swag init -g cmd/api/main.go` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/session": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["account"], "summary": "Reconcile the caller's account", "responses": {"200": {"description": "OK"}, "503": {"description": "Store unavailable"}}}
        },
        "/me/account": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["account"], "summary": "Get the caller's account", "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}
        },
        "/me/account/stream": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["account"], "summary": "Stream account changes as server-sent events", "produces": ["text/event-stream"], "responses": {"200": {"description": "OK"}}}
        },
        "/me/rewards/ad": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["rewards"], "summary": "Claim the ad reward", "responses": {"200": {"description": "OK"}}}
        },
        "/me/rewards/share": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["rewards"], "summary": "Claim the share reward", "responses": {"200": {"description": "OK"}}}
        },
        "/me/spend": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["account"], "summary": "Spend coins", "responses": {"200": {"description": "OK"}, "402": {"description": "Insufficient funds"}}}
        },
        "/me/transactions": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["account"], "summary": "List coin transactions", "responses": {"200": {"description": "OK"}}}
        },
        "/me/generations": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["prompts"], "summary": "Record a prompt generation", "responses": {"200": {"description": "OK"}, "402": {"description": "Insufficient funds"}}}
        },
        "/me/history": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["prompts"], "summary": "List generation history", "responses": {"200": {"description": "OK"}}}
        },
        "/me/history/{id}": {
            "delete": {"security": [{"BearerAuth": []}], "tags": ["prompts"], "summary": "Delete a history entry", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/me/favorites": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["prompts"], "summary": "List favorites", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["prompts"], "summary": "Add a favorite", "responses": {"201": {"description": "Created"}}}
        },
        "/me/favorites/{id}": {
            "delete": {"security": [{"BearerAuth": []}], "tags": ["prompts"], "summary": "Remove a favorite", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/me/subscription": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["subscription"], "summary": "Get the caller's subscription", "responses": {"200": {"description": "OK"}}}
        },
        "/me/entitlement": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["subscription"], "summary": "Get the caller's entitlement", "responses": {"200": {"description": "OK"}}}
        },
        "/internal/accounts/{userId}/adjust": {
            "post": {"security": [{"ApiKeyAuth": []}], "tags": ["internal"], "summary": "Adjust an account counter", "parameters": [{"type": "string", "name": "userId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "400": {"description": "Validation error"}}}
        },
        "/internal/subscriptions/activate": {
            "post": {"security": [{"ApiKeyAuth": []}], "tags": ["internal"], "summary": "Activate a paid subscription", "responses": {"200": {"description": "OK"}}}
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "X-API-Key", "in": "header"},
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Prompt Master API",
	Description:      "Coin ledger, rewards and prompt history for Prompt Master.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
