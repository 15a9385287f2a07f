package assurance

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ingestedDocumentSchemaURL is a synthetic identifier; the schema text is
// loaded from an in-memory resource, never fetched over the network.
const ingestedDocumentSchemaURL = "https://parley.schemas.local/ingested-document.schema.json"

const ingestedDocumentSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["source", "title", "issuer", "date", "scope", "controls", "toolAssuranceLevel"],
  "properties": {
    "source": {"type": "string", "enum": ["soc2", "iso27001", "prowler", "securityhub", "pentest", "manual", "json", "ciso-assistant"]},
    "title": {"type": "string", "minLength": 1},
    "issuer": {"type": "string", "minLength": 1},
    "date": {"type": "string", "minLength": 1},
    "scope": {"type": "string"},
    "auditor": {"type": "string"},
    "reportType": {"type": "string"},
    "rawHash": {"type": "string"},
    "toolAssuranceLevel": {"type": "integer", "minimum": 0, "maximum": 2},
    "assessorNotes": {"type": "string"},
    "externalMethodologyScore": {"type": "number", "minimum": 0, "maximum": 1},
    "externalBiasScore": {"type": "number", "minimum": 0, "maximum": 1},
    "assessmentContext": {
      "type": "object",
      "properties": {
        "techStack": {"type": "array", "items": {"type": "string"}},
        "compensatingControls": {"type": "array", "items": {"type": "string"}},
        "scopeGaps": {"type": "array", "items": {"type": "string"}},
        "scopeCoverage": {"type": "string"}
      }
    },
    "controls": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "description", "status"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "status": {"type": "string", "enum": ["effective", "ineffective", "not-tested"]},
          "severity": {"type": "string", "enum": ["CRITICAL", "HIGH", "MEDIUM", "LOW"]},
          "frameworkMappings": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["framework", "controlId"],
              "properties": {
                "framework": {"type": "string"},
                "controlId": {"type": "string"}
              }
            }
          },
          "assuranceLevel": {"type": "integer", "minimum": 0, "maximum": 4}
        }
      }
    }
  }
}`

var (
	ingestedDocumentSchemaOnce sync.Once
	ingestedDocumentSchema     *jsonschema.Schema
	ingestedDocumentSchemaErr  error
)

func compiledIngestedDocumentSchema() (*jsonschema.Schema, error) {
	ingestedDocumentSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(ingestedDocumentSchemaURL, strings.NewReader(ingestedDocumentSchemaJSON)); err != nil {
			ingestedDocumentSchemaErr = fmt.Errorf("assurance: load schema resource: %w", err)
			return
		}
		compiled, err := c.Compile(ingestedDocumentSchemaURL)
		if err != nil {
			ingestedDocumentSchemaErr = fmt.Errorf("assurance: compile schema: %w", err)
			return
		}
		ingestedDocumentSchema = compiled
	})
	return ingestedDocumentSchema, ingestedDocumentSchemaErr
}

// ValidateIngestedDocument checks raw against the ingested-document JSON
// schema before Normalize ever sees it, rejecting malformed evidence
// payloads at the ingestion boundary rather than failing deep inside
// scoring.
func ValidateIngestedDocument(raw []byte) error {
	schema, err := compiledIngestedDocumentSchema()
	if err != nil {
		return err
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("assurance: parse document: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("assurance: document failed schema validation: %w", err)
	}
	return nil
}
