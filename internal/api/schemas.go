package api

const openAccountSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["practitioner_id"],
  "properties": {
    "tenant_id": {"type": "string", "maxLength": 100},
    "practitioner_id": {"type": "string", "minLength": 1, "maxLength": 100},
    "bank": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "bank_name": {"type": "string", "maxLength": 255},
        "account_masked": {"type": "string", "maxLength": 50},
        "branch_code": {"type": "string", "maxLength": 20}
      }
    },
    "interest_policy": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "annual_rate": {"type": ["string", "number"]},
        "accrual_basis": {"type": "string", "enum": ["act/365"]},
        "minimum_payout": {"type": ["string", "number"]}
      }
    }
  }
}`

const transactionSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["type", "amount", "client_id", "matter_reference"],
  "properties": {
    "type": {"type": "string", "enum": ["deposit", "withdrawal", "transfer", "interest", "refund", "fee", "correction"]},
    "purpose": {"type": "string", "maxLength": 100},
    "amount": {"type": ["string", "number"]},
    "client_id": {"type": "string", "minLength": 1, "maxLength": 100},
    "client_name": {"type": "string", "maxLength": 255},
    "matter_reference": {"type": "string", "minLength": 1, "maxLength": 100},
    "description": {"type": "string", "maxLength": 1000},
    "reference": {"type": "string", "maxLength": 255}
  }
}`

const reverseSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["reason"],
  "properties": {
    "reason": {"type": "string", "minLength": 1, "maxLength": 1000}
  }
}`

const reconcileSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["bank_balance", "statement"],
  "properties": {
    "bank_balance": {"type": ["string", "number"]},
    "statement": {
      "type": "object",
      "additionalProperties": false,
      "required": ["date", "reference"],
      "properties": {
        "date": {"type": "string", "format": "date-time"},
        "reference": {"type": "string", "minLength": 1, "maxLength": 255},
        "digest": {"type": "string", "maxLength": 128}
      }
    }
  }
}`

const closeSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["reason"],
  "properties": {
    "reason": {"type": "string", "minLength": 1, "maxLength": 1000}
  }
}`
