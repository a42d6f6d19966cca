package api

import "github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/validation"

var createAlertSchema = validation.MustCompileSchema(`{
  "type": "object",
  "required": ["title", "message", "severity", "channels", "targeting", "createdBy"],
  "properties": {
    "title": {"type": "string", "minLength": 1, "maxLength": 200},
    "message": {"type": "string", "minLength": 1, "maxLength": 5000},
    "severity": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
    "channels": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "enum": ["email", "sms", "push"]}
    },
    "targeting": {
      "type": "object",
      "properties": {
        "all": {"type": "boolean"},
        "roles": {"type": "array", "items": {"type": "string"}},
        "userIds": {"type": "array", "items": {"type": "string"}}
      },
      "additionalProperties": false
    },
    "createdBy": {"type": "string", "minLength": 1},
    "incidentId": {"type": "string"},
    "sendImmediately": {"type": "boolean"}
  }
}`)

var acknowledgeSchema = validation.MustCompileSchema(`{
  "type": "object",
  "required": ["userId"],
  "properties": {
    "userId": {"type": "string", "minLength": 1},
    "notes": {"type": "string", "maxLength": 2000}
  }
}`)

var pushTokenSchema = validation.MustCompileSchema(`{
  "type": "object",
  "required": ["token"],
  "properties": {
    "token": {"type": "string", "minLength": 1}
  }
}`)
