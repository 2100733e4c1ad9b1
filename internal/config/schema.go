package config

// definitionSchema is the JSON schema secretseed.yaml is checked against
const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["secrets"],
  "additionalProperties": false,
  "properties": {
    "version": {"type": "integer"},
    "secrets": {
      "type": "object",
      "propertyNames": {"pattern": "^[A-Za-z0-9_.+=@/-]+$"},
      "additionalProperties": {"type": "string"}
    },
    "use_parameter_store": {"type": "boolean"},
    "name_prefix": {"type": "string", "pattern": "^[A-Za-z0-9_.+=@/-]*$"},
    "kms_key_id": {"type": "string"},
    "resource_tags": {
      "type": "object",
      "maxProperties": 50,
      "additionalProperties": {"type": "string", "maxLength": 256}
    },
    "aws": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "region": {"type": "string"},
        "profile": {"type": "string"},
        "endpoint": {"type": "string"},
        "access_key_id": {"type": "string"},
        "secret_access_key": {"type": "string"}
      }
    }
  }
}`
