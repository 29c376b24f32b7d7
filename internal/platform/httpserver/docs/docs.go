// Package docs registers the OpenAPI document served under /swagger.
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
        "/healthz": {
            "get": {
                "tags": ["ops"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/readyz": {
            "get": {
                "tags": ["ops"],
                "summary": "Readiness probe over every store",
                "responses": {"200": {"description": "OK"}, "503": {"description": "A store is unreachable"}}
            }
        },
        "/v1/subjects/{subject_id}/balance": {
            "get": {
                "tags": ["ledger"],
                "summary": "Current credit balance of a subject",
                "parameters": [
                    {"type": "string", "description": "Subject ID", "name": "subject_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ledger.BalanceResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/v1/subjects/{subject_id}/history": {
            "get": {
                "tags": ["ledger"],
                "summary": "Page through a subject's ledger entries",
                "parameters": [
                    {"type": "string", "description": "Subject ID", "name": "subject_id", "in": "path", "required": true},
                    {"type": "string", "description": "Entry ID to continue from", "name": "cursor", "in": "query"},
                    {"type": "integer", "description": "Page size", "name": "limit", "in": "query"},
                    {"type": "string", "description": "forward or backward", "name": "direction", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/subjects/{subject_id}/adjustments": {
            "post": {
                "tags": ["ledger"],
                "summary": "Administrative balance adjustment",
                "parameters": [
                    {"type": "string", "description": "Subject ID", "name": "subject_id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/entities/{kind}": {
            "post": {
                "tags": ["surveys"],
                "summary": "Publish a research or vote and pay its upload cost",
                "parameters": [
                    {"type": "string", "description": "research or vote", "name": "kind", "in": "path", "required": true},
                    {"type": "string", "description": "Makes a retried upload pay once", "name": "Idempotency-Key", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "Replayed"},
                    "201": {"description": "Created"},
                    "402": {"description": "Insufficient balance", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/v1/entities/research/{entity_id}": {
            "patch": {
                "tags": ["surveys"],
                "summary": "Edit an open research; only a larger lottery pool is charged",
                "parameters": [
                    {"type": "string", "description": "Entity ID", "name": "entity_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "402": {"description": "Insufficient balance", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            },
            "delete": {
                "tags": ["surveys"],
                "summary": "Soft-delete a research",
                "parameters": [
                    {"type": "string", "description": "Entity ID", "name": "entity_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Not the author", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/v1/entities/{kind}/{entity_id}/participations": {
            "post": {
                "tags": ["surveys"],
                "summary": "Participate in a research or vote",
                "parameters": [
                    {"type": "string", "description": "research or vote", "name": "kind", "in": "path", "required": true},
                    {"type": "string", "description": "Entity ID", "name": "entity_id", "in": "path", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/v1/entities/{kind}/{entity_id}/close": {
            "post": {
                "tags": ["surveys"],
                "summary": "Close an entity and pay its lottery winners",
                "parameters": [
                    {"type": "string", "description": "research or vote", "name": "kind", "in": "path", "required": true},
                    {"type": "string", "description": "Entity ID", "name": "entity_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Not the author", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/v1/exchange/orders": {
            "post": {
                "tags": ["exchange"],
                "summary": "Exchange credit for a product",
                "parameters": [
                    {"type": "string", "description": "Idempotency key", "name": "Idempotency-Key", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "Replayed"},
                    "201": {"description": "Created"},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/errorResponse"}}
                }
            }
        },
        "/v1/admin/sweep": {
            "post": {
                "tags": ["ops"],
                "summary": "Close overdue entities and distribute every pending lottery",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "errorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "ledger.BalanceResponse": {
            "type": "object",
            "properties": {
                "subject_id": {"type": "string"},
                "balance": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "pollstack API",
	Description:      "Credit ledger, surveys, lotteries and product exchange.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
