package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Union Benefits Portal API",
        "description": "Employee benefits portal: enrollments, point redemption and roster exports",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication and session management"},
        {"name": "Home", "description": "Role-based landing resolution"},
        {"name": "Enrollments", "description": "Benefit enrollment listings"},
        {"name": "Enrolling", "description": "Registration form and admission"},
        {"name": "Exchange", "description": "Point redemption"},
        {"name": "Exports", "description": "Roster export jobs"},
        {"name": "Admin", "description": "Administrative endpoints"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Login with username and password",
                "parameters": [
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Token pair", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "responses": {
                    "200": {"description": "New token pair", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid or revoked token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Revoke the current session",
                "responses": {
                    "204": {"description": "Logged out"}
                }
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Auth"],
                "summary": "Change the caller's password",
                "responses": {
                    "204": {"description": "Password changed"},
                    "400": {"description": "Weak or mismatched password", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/home": {
            "get": {
                "tags": ["Home"],
                "summary": "Resolve the role-dependent landing area",
                "responses": {
                    "200": {"description": "Landing destination with profile", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List active enrollments with rosters",
                "responses": {
                    "200": {"description": "Enrollment list", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Get one enrollment with its form fields",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Enrollment detail", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown enrollment", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/enroll": {
            "get": {
                "tags": ["Enrolling"],
                "summary": "Resolve the registration form state",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Eligible with pre-filled defaults", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Self enrollment only", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already enrolled or roster full", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Not open for enrolling", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Enrolling"],
                "summary": "Submit a registration",
                "consumes": ["application/x-www-form-urlencoded"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "EmployeeNo", "in": "formData", "required": true, "type": "string"},
                    {"name": "EmailAddress", "in": "formData", "required": true, "type": "string"},
                    {"name": "Name", "in": "formData", "required": true, "type": "string"},
                    {"name": "PhoneNumber", "in": "formData", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Enrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Self enrollment only", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already enrolled or roster full", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Not open for enrolling", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exchange/activity": {
            "get": {
                "tags": ["Exchange"],
                "summary": "Get the currently open exchange activity",
                "responses": {
                    "200": {"description": "Active activity with products, or empty", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exchange/orders": {
            "post": {
                "tags": ["Exchange"],
                "summary": "Place a redemption order",
                "parameters": [
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PlaceOrderRequest"}}
                ],
                "responses": {
                    "201": {"description": "Order receipt", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid items", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Insufficient points or no profile", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/roster": {
            "get": {
                "tags": ["Admin"],
                "summary": "List enrollees of an enrollment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Roster", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/roster-export": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a roster export",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RequestExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Job ticket", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/roster-exports/{jobId}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Poll an export job",
                "parameters": [
                    {"name": "jobId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Job status", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download an export by signed token",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Export file"},
                    "404": {"description": "Expired or invalid token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/system-status": {
            "get": {
                "tags": ["Admin"],
                "summary": "System status snapshot",
                "responses": {
                    "200": {"description": "Aggregate metrics", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "PlaceOrderRequest": {
            "type": "object",
            "properties": {
                "items": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "product_id": {"type": "string"},
                            "quantity": {"type": "integer"}
                        }
                    }
                }
            }
        },
        "RequestExportRequest": {
            "type": "object",
            "properties": {
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"type": "object"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
