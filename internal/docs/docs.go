// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

// Package docs registers the OpenAPI document served under /swagger/.
// The document is maintained by hand alongside the handler annotations in
// internal/api.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "AGPL-3.0-or-later",
            "url": "https://www.gnu.org/licenses/agpl-3.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Health"],
                "summary": "Health status",
                "security": [],
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}}}
            }
        },
        "/health/ready": {
            "get": {
                "tags": ["Health"],
                "summary": "Readiness probe",
                "security": [],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Ready", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "503": {"description": "Database unavailable", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        },
        "/locations": {
            "post": {
                "tags": ["Locations"],
                "summary": "Submit a location fix",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"name": "fix", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FixInput"}}],
                "responses": {
                    "201": {"description": "Stored", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "400": {"description": "VALIDATION_ERROR", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "401": {"description": "UNAUTHORIZED", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "429": {"description": "RATE_LIMIT_EXCEEDED", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        },
        "/locations/batch": {
            "post": {
                "tags": ["Locations"],
                "summary": "Submit a batch of location fixes",
                "description": "All items are validated before any is stored; one invalid item rejects the batch and the error names every failing index.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"name": "batch", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchRequest"}}],
                "responses": {
                    "201": {"description": "Stored", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "400": {"description": "VALIDATION_ERROR", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        },
        "/locations/history/{userId}": {
            "get": {
                "tags": ["Locations"],
                "summary": "Location history, newest first",
                "description": "Omit userId to read your own history. Reading another user requires admin.",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "userId", "in": "path", "required": true, "type": "string"},
                    {"name": "startDate", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "endDate", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "limit", "in": "query", "type": "integer", "default": 100, "minimum": 1, "maximum": 1000},
                    {"name": "offset", "in": "query", "type": "integer", "default": 0, "minimum": 0},
                    {"name": "source", "in": "query", "type": "string", "enum": ["gps", "network", "passive"]}
                ],
                "responses": {
                    "200": {"description": "Page of fixes with pagination metadata", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "403": {"description": "FORBIDDEN", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        },
        "/locations/current": {
            "get": {
                "tags": ["Locations"],
                "summary": "Latest fix of every recently active user",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "403": {"description": "FORBIDDEN", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        },
        "/locations/stats/{userId}": {
            "get": {
                "tags": ["Locations"],
                "summary": "Location statistics",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "userId", "in": "path", "required": true, "type": "string"},
                    {"name": "startDate", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "endDate", "in": "query", "type": "string", "format": "date-time"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "403": {"description": "FORBIDDEN", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        },
        "/locations/cleanup": {
            "delete": {
                "tags": ["Maintenance"],
                "summary": "Purge fixes older than days",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "days", "in": "query", "type": "integer", "default": 90, "minimum": 1, "maximum": 365},
                    {"name": "async", "in": "query", "type": "boolean", "default": false}
                ],
                "responses": {
                    "200": {"description": "deletedCount and cutoffDate", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "202": {"description": "Job accepted", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "409": {"description": "MAINTENANCE_CONFLICT", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        },
        "/locations/compress": {
            "post": {
                "tags": ["Maintenance"],
                "summary": "Thin fixes older than days to a keep ratio",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "days", "in": "query", "type": "integer", "default": 30, "minimum": 1, "maximum": 365},
                    {"name": "compressionRatio", "in": "query", "type": "number", "default": 0.5, "minimum": 0.1, "maximum": 1},
                    {"name": "async", "in": "query", "type": "boolean", "default": false}
                ],
                "responses": {
                    "200": {"description": "compressed, cutoffDate and compressionRatio", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "202": {"description": "Job accepted", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "409": {"description": "MAINTENANCE_CONFLICT", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        },
        "/maintenance/jobs": {
            "get": {
                "tags": ["Maintenance"],
                "summary": "List maintenance jobs, newest first",
                "produces": ["application/json"],
                "parameters": [{"name": "limit", "in": "query", "type": "integer", "default": 50, "minimum": 1, "maximum": 500}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}}}
            }
        },
        "/maintenance/jobs/{id}": {
            "get": {
                "tags": ["Maintenance"],
                "summary": "Get a maintenance job",
                "produces": ["application/json"],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "404": {"description": "NOT_FOUND", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            },
            "delete": {
                "tags": ["Maintenance"],
                "summary": "Cancel a running maintenance job",
                "produces": ["application/json"],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "202": {"description": "Cancel requested", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "404": {"description": "NOT_FOUND", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "409": {"description": "JOB_FINISHED", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        },
        "/ws/locations": {
            "get": {
                "tags": ["Live"],
                "summary": "Websocket stream of locationUpdate events",
                "parameters": [
                    {"name": "userId", "in": "query", "type": "string"},
                    {"name": "access_token", "in": "query", "type": "string", "description": "Bearer token for browsers that cannot set headers"}
                ],
                "responses": {"101": {"description": "Switching protocols"}}
            }
        }
    },
    "definitions": {
        "APIResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["success", "error"]},
                "data": {},
                "error": {"$ref": "#/definitions/APIError"},
                "metadata": {"$ref": "#/definitions/Metadata"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "details": {}
            }
        },
        "Metadata": {
            "type": "object",
            "properties": {
                "timestamp": {"type": "string", "format": "date-time"},
                "request_id": {"type": "string"},
                "pagination": {
                    "type": "object",
                    "properties": {
                        "total": {"type": "integer"},
                        "limit": {"type": "integer"},
                        "offset": {"type": "integer"},
                        "hasMore": {"type": "boolean"}
                    }
                }
            }
        },
        "FixInput": {
            "type": "object",
            "required": ["latitude", "longitude", "timestamp"],
            "properties": {
                "latitude": {"type": "number", "minimum": -90, "maximum": 90},
                "longitude": {"type": "number", "minimum": -180, "maximum": 180},
                "timestamp": {"type": "string", "format": "date-time"},
                "accuracy": {"type": "number", "minimum": 0},
                "altitude": {"type": "number"},
                "speed": {"type": "number", "minimum": 0},
                "heading": {"type": "number", "minimum": 0, "exclusiveMaximum": true, "maximum": 360},
                "batteryLevel": {"type": "integer", "minimum": 0, "maximum": 100},
                "source": {"type": "string", "enum": ["gps", "network", "passive"], "default": "gps"},
                "metadata": {"type": "object"}
            }
        },
        "BatchRequest": {
            "type": "object",
            "required": ["locations"],
            "properties": {
                "locations": {"type": "array", "minItems": 1, "maxItems": 100, "items": {"$ref": "#/definitions/FixInput"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Fieldtrack API",
	Description:      "Location ingestion, history, live streaming and retention for field personnel.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
