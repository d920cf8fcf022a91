package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Elective Enrollment API",
        "description": "Seat-capacity enrollment for faculty-led elective sections.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Sections", "description": "Faculty sections of a subject for a department/year cohort"},
        {"name": "Enrollments", "description": "Taking and giving up seats"},
        {"name": "Reports", "description": "Faculty enrollment reports and exports"},
        {"name": "Events", "description": "Live section and staff activity streams"},
        {"name": "Authentication", "description": "Caller identity"},
        {"name": "Observability", "description": "Process counters"}
    ],
    "paths": {
        "/sections": {
            "get": {
                "tags": ["Sections"],
                "summary": "List sections",
                "parameters": [
                    {"name": "department", "in": "query", "type": "string"},
                    {"name": "year", "in": "query", "type": "integer"},
                    {"name": "facultyId", "in": "query", "type": "string"},
                    {"name": "subject", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Sections"],
                "summary": "Assign a faculty member to a subject (admin)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSectionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Unknown subject or faculty", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Faculty already teaches this subject to the cohort", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sections/available": {
            "get": {
                "tags": ["Sections"],
                "summary": "List sections with free seats",
                "description": "Students see their own department by default and never see subjects they already hold.",
                "parameters": [
                    {"name": "department", "in": "query", "type": "string"},
                    {"name": "year", "in": "query", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sections/{id}": {
            "get": {
                "tags": ["Sections"],
                "summary": "Get section",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "SECTION_NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sections/{id}/enrollment": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Take a seat in a section",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "studentId", "in": "query", "type": "string", "description": "Admins only"}
                ],
                "responses": {
                    "201": {"description": "Enrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "SECTION_NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "ALREADY_ENROLLED_SECTION, ALREADY_ENROLLED_SUBJECT or SECTION_FULL", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "CONTENTION_TIMEOUT", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Enrollments"],
                "summary": "Give up a seat in a section",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "studentId", "in": "query", "type": "string", "description": "Admins only"}
                ],
                "responses": {
                    "200": {"description": "Unenrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "NOT_ENROLLED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "CONTENTION_TIMEOUT", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/me": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List the caller's enrollments",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/sections": {
            "get": {
                "tags": ["Reports"],
                "summary": "Students enrolled with a faculty member for a subject",
                "produces": ["application/json", "text/csv", "application/pdf"],
                "parameters": [
                    {"name": "subject", "in": "query", "type": "string", "required": true},
                    {"name": "facultyId", "in": "query", "type": "string", "description": "Admins only"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["json", "csv", "pdf"]},
                    {"name": "columns", "in": "query", "type": "string", "description": "Comma separated: regd_number, student_name, email, year, department, enrolled_at"}
                ],
                "responses": {
                    "200": {"description": "Report or file download"}
                }
            }
        },
        "/events/stream": {
            "get": {
                "tags": ["Events"],
                "summary": "Subscribe to a realtime topic",
                "description": "Section topics are named Subject_Year_Department. Staff may also subscribe to audience.FACULTY or audience.ADMIN.",
                "produces": ["text/event-stream"],
                "parameters": [
                    {"name": "topic", "in": "query", "type": "string", "required": true},
                    {"name": "access_token", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Event stream"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current identity",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Observability"],
                "summary": "Allocation and cache counters (admin)",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateSectionRequest": {
            "type": "object",
            "required": ["subject_id", "faculty_id", "department", "year"],
            "properties": {
                "subject_id": {"type": "string"},
                "faculty_id": {"type": "string"},
                "department": {"type": "string"},
                "year": {"type": "integer", "minimum": 1, "maximum": 6},
                "capacity": {"type": "integer", "minimum": 1, "maximum": 1000}
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
