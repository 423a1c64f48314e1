package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Billing API",
        "description": "Exam and certificate billing ledger with partial payments",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Billing", "description": "Exam and certificate bills, payments and reports"},
        {"name": "Fee Structures", "description": "Fee catalog used to price assessments"}
    ],
    "paths": {
        "/billing/exam-bills": {
            "post": {
                "tags": ["Billing"],
                "summary": "Issue an exam bill",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateExamBillRequest"}}
                ],
                "responses": {
                    "201": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict or invalid state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/billing/certificate-bills": {
            "post": {
                "tags": ["Billing"],
                "summary": "Issue a certificate bill",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCertificateBillRequest"}}
                ],
                "responses": {
                    "201": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/billing/bills": {
            "get": {
                "tags": ["Billing"],
                "summary": "List bills of both kinds",
                "parameters": [
                    {"name": "type", "in": "query", "type": "string", "enum": ["EXAM", "CERTIFICATE"]},
                    {"name": "status", "in": "query", "type": "string", "enum": ["PENDING", "PARTIALLY_PAID", "COMPLETED"]},
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "schoolId", "in": "query", "type": "string"},
                    {"name": "dueFrom", "in": "query", "type": "string", "format": "date"},
                    {"name": "dueTo", "in": "query", "type": "string", "format": "date"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string", "enum": ["created_at", "due_date", "bill_no", "balance"]},
                    {"name": "order", "in": "query", "type": "string", "enum": ["asc", "desc"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/billing/bills/{id}": {
            "get": {
                "tags": ["Billing"],
                "summary": "Get bill detail",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/billing/bills/{id}/payments": {
            "get": {
                "tags": ["Billing"],
                "summary": "List payments recorded against a bill",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Billing"],
                "summary": "Apply a payment to a bill",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApplyPaymentRequest"}}
                ],
                "responses": {
                    "201": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict or invalid state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/billing/bills/{id}/snapshot": {
            "get": {
                "tags": ["Billing"],
                "summary": "Bill and payment snapshot for invoice rendering",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/billing/overdue": {
            "get": {
                "tags": ["Billing"],
                "summary": "List overdue bills, oldest due date first",
                "parameters": [
                    {"name": "type", "in": "query", "type": "string", "enum": ["EXAM", "CERTIFICATE"]},
                    {"name": "schoolId", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/billing/statistics": {
            "get": {
                "tags": ["Billing"],
                "summary": "Billing statistics across exam and certificate bills",
                "parameters": [
                    {"name": "days", "in": "query", "type": "integer", "minimum": 1, "maximum": 366},
                    {"name": "schoolId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/billing/fee-structures": {
            "get": {
                "tags": ["Fee Structures"],
                "summary": "List fee structures",
                "parameters": [
                    {"name": "type", "in": "query", "type": "string", "enum": ["EXAM_FEE", "CERTIFICATE_FEE"]},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Fee Structures"],
                "summary": "Create fee structure",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateFeeStructureRequest"}}
                ],
                "responses": {
                    "201": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict or invalid state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/billing/fee-structures/{id}": {
            "get": {
                "tags": ["Fee Structures"],
                "summary": "Get fee structure",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Fee Structures"],
                "summary": "Update fee structure",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateFeeStructureRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateExamBillRequest": {
            "type": "object",
            "required": ["student_id", "exam_id", "fee_structure_id"],
            "properties": {
                "student_id": {"type": "string"},
                "exam_id": {"type": "string"},
                "fee_structure_id": {"type": "string"},
                "due_date": {"type": "string", "format": "date"},
                "description": {"type": "string"}
            }
        },
        "CreateCertificateBillRequest": {
            "type": "object",
            "required": ["student_id", "fee_structure_id"],
            "properties": {
                "student_id": {"type": "string"},
                "certificate_id": {"type": "string"},
                "fee_structure_id": {"type": "string"},
                "quantity": {"type": "integer", "minimum": 1, "maximum": 1000},
                "due_date": {"type": "string", "format": "date"},
                "description": {"type": "string"}
            }
        },
        "ApplyPaymentRequest": {
            "type": "object",
            "required": ["bill_type", "amount", "method"],
            "properties": {
                "bill_type": {"type": "string", "enum": ["EXAM", "CERTIFICATE"]},
                "amount": {"type": "string", "example": "150000.00"},
                "method": {"type": "string", "enum": ["CASH", "BANK_TRANSFER", "CARD", "MOBILE_MONEY", "ONLINE_GATEWAY"]},
                "transaction_id": {"type": "string"},
                "gateway_ref": {"type": "string"},
                "remarks": {"type": "string"}
            }
        },
        "CreateFeeStructureRequest": {
            "type": "object",
            "required": ["name", "type", "amount"],
            "properties": {
                "name": {"type": "string"},
                "type": {"type": "string", "enum": ["EXAM_FEE", "CERTIFICATE_FEE"]},
                "amount": {"type": "string", "example": "250000.00"},
                "currency": {"type": "string", "example": "IDR"},
                "description": {"type": "string"},
                "active": {"type": "boolean"}
            }
        },
        "UpdateFeeStructureRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "amount": {"type": "string"},
                "currency": {"type": "string"},
                "description": {"type": "string"},
                "active": {"type": "boolean"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
