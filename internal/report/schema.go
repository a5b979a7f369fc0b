package report

// Schema is the JSON Schema (Draft 2020-12) for the bindcheck run
// report. It documents the structure returned by WriteJSON.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/unbound-force/bindcheck/run-report.schema.json",
  "title": "bindcheck Run Report",
  "description": "Output schema for bindcheck run --format=json",
  "type": "object",
  "required": ["schema_version", "metadata", "modules", "audit", "expectations", "exit_code"],
  "properties": {
    "schema_version": {
      "type": "string",
      "description": "Report layout version (semver)"
    },
    "metadata": { "$ref": "#/$defs/Metadata" },
    "modules": {
      "type": "array",
      "items": { "$ref": "#/$defs/ModuleResult" }
    },
    "audit": { "$ref": "#/$defs/Audit" },
    "expectations": {
      "type": "array",
      "items": { "$ref": "#/$defs/Expectation" }
    },
    "exit_code": {
      "type": "integer",
      "enum": [0, 1, 2],
      "description": "0 success, 1 test failure, 2 setup or usage failure"
    }
  },
  "$defs": {
    "Metadata": {
      "type": "object",
      "required": ["run_id", "bindcheck_version", "go_version", "build_config", "api_version", "variants", "duration_ms"],
      "properties": {
        "run_id": { "type": "string" },
        "bindcheck_version": { "type": "string" },
        "go_version": { "type": "string" },
        "build_config": { "type": "string" },
        "api_version": { "type": "integer", "minimum": 0 },
        "variants": {
          "type": "array",
          "items": { "type": "string" }
        },
        "duration_ms": {
          "type": "integer",
          "description": "Run duration in milliseconds"
        },
        "timestamp": {
          "type": "string",
          "description": "Run start time (RFC 3339)"
        }
      }
    },
    "ModuleResult": {
      "type": "object",
      "required": ["module", "status"],
      "properties": {
        "module": { "type": "string" },
        "variant": { "type": "string" },
        "artifact": {
          "type": "string",
          "description": "Absolute artifact path"
        },
        "status": {
          "type": "string",
          "enum": ["pass", "fail", "skip"]
        },
        "error": {
          "type": "string",
          "description": "Failure message or skip reason"
        },
        "failure_class": {
          "type": "string",
          "enum": [
            "INVALID_ARGUMENT", "EXPECTATION_UNMET", "ASSERTION_FAILURE",
            "SETUP_FAILURE", "MISSING_CAPABILITY", "USAGE"
          ]
        }
      }
    },
    "Audit": {
      "type": "object",
      "required": ["ran", "skipped", "registered", "failed"],
      "properties": {
        "ran": { "type": "boolean" },
        "skipped": {
          "type": "boolean",
          "description": "True when an earlier failure suppressed the audit"
        },
        "registered": { "type": "integer", "minimum": 0 },
        "failed": { "type": "integer", "minimum": 0 }
      }
    },
    "Expectation": {
      "type": "object",
      "required": ["id", "name", "criterion", "actual", "satisfied", "location"],
      "properties": {
        "id": {
          "type": "string",
          "description": "Stable identifier (ex-XXXXXXXX)"
        },
        "name": {
          "type": "string",
          "description": "Origin function name or <anonymous>"
        },
        "criterion": {
          "type": "object",
          "required": ["kind", "value"],
          "properties": {
            "kind": { "type": "string", "enum": ["exact", "at_least"] },
            "value": { "type": "integer", "minimum": 0 }
          }
        },
        "actual": { "type": "integer", "minimum": 0 },
        "satisfied": { "type": "boolean" },
        "location": {
          "type": "string",
          "description": "Registration site (file:line)"
        },
        "trace": {
          "type": "array",
          "items": { "type": "string" }
        }
      }
    }
  }
}`
