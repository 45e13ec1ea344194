package catalog

// In this file: the JSON Schemas for the analysis tool's input and output.
// These are declared raw rather than generated: the contract requires
// additionalProperties:false on input and nullable numeric summary fields on
// output, which reflection-based schema generation does not express.

import "encoding/json"

// ToolInputSchema is the declared input schema of the analysis tool.
var ToolInputSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "subscriptions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "service": {"type": "string"},
          "monthly_cost": {"type": "number"},
          "category": {"type": "string"}
        }
      },
      "description": "Manually entered subscriptions if known."
    },
    "total_monthly_spend": {
      "type": "number",
      "description": "Total monthly subscription spending if known."
    },
    "view_filter": {
      "type": "string",
      "enum": ["all", "cancelling", "keeping", "investigating"],
      "description": "Which subscriptions to show."
    },
    "statement_text": {
      "type": "string",
      "description": "The raw text of a bank statement or list of transactions to analyze for subscriptions."
    },
    "bank_statement": {
      "type": "object",
      "properties": {
        "download_url": {"type": "string", "description": "URL to download the uploaded file from"},
        "file_id": {"type": "string", "description": "Identifier of the uploaded file"}
      },
      "required": ["download_url", "file_id"],
      "additionalProperties": false,
      "description": "Bank statement file (PDF or CSV) uploaded by the user."
    }
  },
  "required": [],
  "additionalProperties": false,
  "$schema": "http://json-schema.org/draft-07/schema#"
}`)

// ToolOutputSchema is the declared output schema of the analysis tool.
var ToolOutputSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "ready": {"type": "boolean"},
    "timestamp": {"type": "string"},
    "subscriptions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "service": {"type": "string"},
          "monthly_cost": {"type": "number"},
          "status": {"type": "string", "enum": ["cancelling", "keeping", "investigating"]},
          "notes": {"type": "string"},
          "cancel_link": {"type": "string"},
          "category": {"type": "string"}
        }
      }
    },
    "summary": {
      "type": "object",
      "properties": {
        "monthly_savings": {"type": ["number", "null"]},
        "yearly_savings": {"type": ["number", "null"]},
        "total_yearly_spending": {"type": ["number", "null"]},
        "cancelling_count": {"type": ["number", "null"]},
        "investigating_count": {"type": ["number", "null"]},
        "keeping_count": {"type": ["number", "null"]},
        "total_count": {"type": ["number", "null"]}
      }
    },
    "suggested_followups": {
      "type": "array",
      "items": {"type": "string"}
    }
  }
}`)
