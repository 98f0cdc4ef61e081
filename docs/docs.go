// Package docs registers the OpenAPI document served under /swagger.
// Regenerate with: swag init -g cmd/main.go
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
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/auth/sign-up": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Sign up",
                "parameters": [
                    {"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.authCredentials"}}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/auth/sign-in": {
            "post": {
                "description": "Returns a JWT for the REST API and the web-app channel.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Sign in",
                "parameters": [
                    {"description": "Credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.authCredentials"}}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}}
            }
        },
        "/api/v1/sensors": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["sensors"],
                "summary": "List sensors",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handlers.SensorResponse"}}},
                    "401": {"description": "Unauthorized"},
                    "500": {"description": "Internal Server Error"}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Returns the sensor secret once; it authenticates the sensor channel and MQTT.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sensors"],
                "summary": "Register sensor",
                "parameters": [
                    {"description": "Sensor payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.RegisterSensorRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}, "500": {"description": "Internal Server Error"}}
            }
        },
        "/api/v1/sensors/{index}/latest": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Trimmed mean of [temp1, tds] over the last minute; null without data.",
                "produces": ["application/json"],
                "tags": ["sensors"],
                "summary": "Latest values",
                "parameters": [
                    {"type": "integer", "description": "Sensor index", "name": "index", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/v1/sensors/{index}/chart.png": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Renders the last 360 ticks of the selected range as a transparent PNG.",
                "produces": ["image/png"],
                "tags": ["sensors"],
                "summary": "Chart image",
                "parameters": [
                    {"type": "integer", "description": "Sensor index", "name": "index", "in": "path", "required": true},
                    {"type": "integer", "description": "Display range (0-3)", "name": "range_index", "in": "query"},
                    {"type": "string", "description": "temp or tds", "name": "kind", "in": "query"},
                    {"type": "integer", "description": "Width in pixels", "name": "width", "in": "query"},
                    {"type": "integer", "description": "Height in pixels", "name": "height", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}, "404": {"description": "Not Found"}}
            }
        }
    },
    "definitions": {
        "handlers.authCredentials": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {
                "password": {"type": "string", "example": "secret"},
                "username": {"type": "string", "example": "owner"}
            }
        },
        "handlers.RegisterSensorRequest": {
            "type": "object",
            "required": ["description"],
            "properties": {
                "description": {"type": "string", "example": "tank A"}
            }
        },
        "handlers.SensorResponse": {
            "type": "object",
            "properties": {
                "description": {"type": "string", "example": "tank A"},
                "index": {"type": "integer", "example": 0},
                "sensor_id": {"type": "integer", "example": 1}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "cobitis_web API",
	Description:      "Aquarium sensor monitoring: sensor ingest, live dashboard channel and chart images.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
