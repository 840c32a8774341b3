package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Armour007/docproc-backend/internal/processor"
)

var bearer = []any{map[string]any{"bearerAuth": []any{}}}

func ref(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

func jsonBody(schema string) map[string]any {
	return map[string]any{"required": true, "content": map[string]any{"application/json": map[string]any{"schema": ref(schema)}}}
}

func processPath(summary, schema string) map[string]any {
	return map[string]any{"post": map[string]any{
		"summary":     summary,
		"security":    bearer,
		"requestBody": jsonBody(schema),
		"responses": map[string]any{
			"200": map[string]any{"description": "Upstream JSON result"},
			"400": map[string]any{"description": "Invalid request"},
			"401": map[string]any{"description": "Unauthorized"},
			"502": map[string]any{"description": "Document processor unavailable"},
			"503": map[string]any{"description": "Document processor temporarily unavailable"},
		},
	}}
}

// OpenAPIJSON serves an OpenAPI v3 document describing the document-processing API.
func OpenAPIJSON(c *gin.Context) {
	codes := make([]string, 0, len(processor.DocumentTypes))
	for _, dt := range processor.DocumentTypes {
		codes = append(codes, dt.Code)
	}
	ops := make([]string, 0, 5)
	for _, op := range processor.Operations() {
		ops = append(ops, string(op))
	}
	str := map[string]any{"type": "string"}
	doc := map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       "Document Processing API",
			"version":     "1.0.0",
			"description": "Directory login, request history and document processing.",
		},
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"bearerAuth": map[string]any{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
			"schemas": map[string]any{
				"LoginRequest": map[string]any{"type": "object", "required": []string{"username", "password"}, "properties": map[string]any{
					"username": str,
					"password": map[string]any{"type": "string", "format": "password"},
				}},
				"LoginResponse": map[string]any{"type": "object", "properties": map[string]any{
					"user":    map[string]any{"type": "object"},
					"token":   str,
					"session": ref("UserSession"),
				}},
				"UserSession": map[string]any{"type": "object", "properties": map[string]any{
					"id":         map[string]any{"type": "string", "format": "uuid"},
					"user_id":    str,
					"username":   str,
					"email":      str,
					"expires_at": map[string]any{"type": "string", "format": "date-time"},
					"is_active":  map[string]any{"type": "boolean"},
				}},
				"DocumentType": map[string]any{"type": "string", "enum": codes},
				"RequestType":  map[string]any{"type": "string", "enum": ops},
				"ImageRequest": map[string]any{"type": "object", "required": []string{"image"}, "properties": map[string]any{
					"image": map[string]any{"type": "string", "description": "base64 or data URL"},
				}},
				"ClassifyRequest": map[string]any{"type": "object", "required": []string{"image", "documentType"}, "properties": map[string]any{
					"image":        str,
					"documentType": ref("DocumentType"),
				}},
				"ExtractRequest": map[string]any{"type": "object", "required": []string{"image", "analysisResult"}, "properties": map[string]any{
					"image":          str,
					"analysisResult": map[string]any{"type": "object"},
					"documentType":   ref("DocumentType"),
				}},
				"LogHistoryRequest": map[string]any{"type": "object", "required": []string{"user_session_id", "request_type", "document_name"}, "properties": map[string]any{
					"user_session_id":        map[string]any{"type": "string", "format": "uuid"},
					"request_type":           ref("RequestType"),
					"document_name":          str,
					"document_type":          ref("DocumentType"),
					"preprocessing_used":     map[string]any{"type": "boolean"},
					"request_payload":        map[string]any{"type": "object"},
					"response_data":          map[string]any{"type": "object"},
					"processing_duration_ms": map[string]any{"type": "integer"},
				}},
				"RequestHistory": map[string]any{"type": "object", "properties": map[string]any{
					"id":              map[string]any{"type": "string", "format": "uuid"},
					"user_session_id": map[string]any{"type": "string", "format": "uuid"},
					"request_type":    ref("RequestType"),
					"document_name":   str,
					"status":          map[string]any{"type": "string", "enum": []string{"success", "pending"}},
					"blob_url":        map[string]any{"type": "string", "nullable": true},
					"created_at":      map[string]any{"type": "string", "format": "date-time"},
				}},
			},
		},
		"paths": map[string]any{
			"/api/auth/login": map[string]any{"post": map[string]any{
				"summary":     "Log in with directory credentials",
				"requestBody": jsonBody("LoginRequest"),
				"responses": map[string]any{
					"200": map[string]any{"description": "Logged in", "content": map[string]any{"application/json": map[string]any{"schema": ref("LoginResponse")}}},
					"400": map[string]any{"description": "Username and password are required"},
					"401": map[string]any{"description": "Login failed"},
					"429": map[string]any{"description": "Rate limited"},
				},
			}},
			"/api/auth/logout": map[string]any{"post": map[string]any{"summary": "Revoke the current token and close sessions", "security": bearer}},
			"/api/auth/me":     map[string]any{"get": map[string]any{"summary": "Current identity", "security": bearer}},
			"/api/history": map[string]any{"get": map[string]any{
				"summary":    "Caller's history across sessions",
				"security":   bearer,
				"parameters": []any{map[string]any{"name": "limit", "in": "query", "schema": map[string]any{"type": "integer", "default": defaultHistoryLimit, "maximum": maxHistoryLimit}}},
				"responses":  map[string]any{"200": map[string]any{"description": "Rows", "content": map[string]any{"application/json": map[string]any{"schema": map[string]any{"type": "array", "items": ref("RequestHistory")}}}}},
			}},
			"/api/history/{sessionId}": map[string]any{"get": map[string]any{
				"summary":    "History of one session",
				"security":   bearer,
				"parameters": []any{map[string]any{"name": "sessionId", "in": "path", "required": true, "schema": map[string]any{"type": "string", "format": "uuid"}}},
			}},
			"/api/history/log": map[string]any{"post": map[string]any{
				"summary":     "Record a processing request",
				"security":    bearer,
				"requestBody": jsonBody("LogHistoryRequest"),
				"responses": map[string]any{
					"200": map[string]any{"description": "Logged"},
					"400": map[string]any{"description": "Invalid request"},
					"404": map[string]any{"description": "Session not found"},
				},
			}},
			"/api/audit/verify": map[string]any{"get": map[string]any{
				"summary":   "Verify the caller's audit hash chain",
				"security":  bearer,
				"responses": map[string]any{"200": map[string]any{"description": "ok, or the first broken seq"}},
			}},
			"/api/preprocess":       processPath("Enhance an image", "ImageRequest"),
			"/api/autoindex":        processPath("Detect the document type", "ImageRequest"),
			"/api/classify":         processPath("Classify against a document type", "ClassifyRequest"),
			"/api/extract":          processPath("Extract fields", "ExtractRequest"),
			"/api/extract-validate": processPath("Extract and validate fields", "ExtractRequest"),
			"/api/document-types":   map[string]any{"get": map[string]any{"summary": "Document type catalog"}},
			"/health":               map[string]any{"get": map[string]any{"summary": "Health"}},
			"/healthz":              map[string]any{"get": map[string]any{"summary": "Liveness"}},
			"/readyz":               map[string]any{"get": map[string]any{"summary": "Readiness"}},
		},
	}
	c.JSON(http.StatusOK, doc)
}

// SwaggerUI serves a lightweight Swagger UI page referencing /openapi.json.
func SwaggerUI(c *gin.Context) {
	html := `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Document Processing API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  <style>body { margin:0 } .swagger-ui .topbar { display:none }</style>
  </head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.json',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
