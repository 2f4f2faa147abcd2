package persistence

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/botnet-empire/server/internal/game"
)

// Import failure modes the caller can present to the player.
var (
	ErrNotBase64     = errors.New("import: not a base64 payload")
	ErrImportInvalid = errors.New("import: document rejected by schema")
)

// importSchema is the structural gate on imported documents: the core
// progression fields must exist with sane types before the sanitizer
// ever sees the data.
const importSchema = `{
  "type": "object",
  "required": ["bots", "money", "skills", "upgrades", "tools"],
  "properties": {
    "bots": {
      "type": "object",
      "properties": {
        "t1":     {"type": "number", "minimum": 0},
        "t2":     {"type": "number", "minimum": 0},
        "t3":     {"type": "number", "minimum": 0},
        "mobile": {"type": "number", "minimum": 0}
      }
    },
    "money":    {"type": "number", "minimum": 0},
    "prestige": {"type": "integer", "minimum": 0},
    "skills":   {"type": "object"},
    "upgrades": {"type": "object"},
    "tools":    {"type": "object"}
  }
}`

var importValidator = jsonschema.MustCompileString("import.json", importSchema)

// Export serializes the given document as a base64 transfer string.
func Export(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// Import decodes and validates a transfer string, returning a
// sanitized state. The current state is never touched on failure.
func Import(payload string) (*game.State, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrNotBase64
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportInvalid, err)
	}
	if err := importValidator.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportInvalid, err)
	}

	st := &game.State{}
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportInvalid, err)
	}
	st.Version = game.SchemaVersion
	st.Sanitize()
	return st, nil
}
