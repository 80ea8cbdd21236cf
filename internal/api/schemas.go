package api

// Schemas check shape only; field rules (document checksum, name length, amount scale) are
// enforced by the ledger so that their specific error codes reach the client.

const createAccountSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["clientName", "document"],
  "properties": {
    "clientName": {"type": "string", "maxLength": 1000},
    "document": {"type": "string", "maxLength": 64}
  }
}`

const transferSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["fromDocument", "toDocument", "amount"],
  "properties": {
    "fromDocument": {"type": "string", "maxLength": 64},
    "toDocument": {"type": "string", "maxLength": 64},
    "amount": {
      "oneOf": [
        {"type": "number"},
        {"type": "string", "pattern": "^-?[0-9]+(\\.[0-9]+)?$"}
      ]
    },
    "description": {"type": "string", "maxLength": 2000}
  }
}`
