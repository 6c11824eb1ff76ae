package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/vietddude/opsbridge/internal/core/domain"
)

const createRequestSchema = `{
  "type": "object",
  "required": ["operations"],
  "properties": {
    "instance": {"type": "string"},
    "transactional": {"type": "boolean"},
    "operations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["target", "payload"],
        "properties": {
          "target": {"type": "string", "minLength": 1},
          "payload": {"type": "object"},
          "save_as": {"type": "string", "pattern": "^[A-Za-z0-9_]+$"}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

const updateRequestSchema = `{
  "type": "object",
  "required": ["updates"],
  "properties": {
    "instance": {"type": "string"},
    "stop_on_error": {"type": "boolean"},
    "updates": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["target", "record_id", "payload"],
        "properties": {
          "target": {"type": "string", "minLength": 1},
          "record_id": {"type": "string", "minLength": 1},
          "payload": {"type": "object"}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

var (
	createSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
		return gojsonschema.NewSchema(gojsonschema.NewStringLoader(createRequestSchema))
	})
	updateSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
		return gojsonschema.NewSchema(gojsonschema.NewStringLoader(updateRequestSchema))
	})
)

// ErrInvalidRequest wraps every schema violation of a batch request document.
var ErrInvalidRequest = errors.New("invalid batch request")

// CreateRequest is the document accepted by the create endpoint and CLI.
type CreateRequest struct {
	Instance      string                   `json:"instance"`
	Operations    []domain.CreateOperation `json:"operations"`
	Transactional *bool                    `json:"transactional,omitempty"`
}

// Options converts the request flags into executor options.
func (r *CreateRequest) Options() []CreateOption {
	if r.Transactional == nil {
		return nil
	}
	return []CreateOption{Transactional(*r.Transactional)}
}

// UpdateRequest is the document accepted by the update endpoint and CLI.
type UpdateRequest struct {
	Instance    string                   `json:"instance"`
	Updates     []domain.UpdateOperation `json:"updates"`
	StopOnError *bool                    `json:"stop_on_error,omitempty"`
}

// Options converts the request flags into executor options.
func (r *UpdateRequest) Options() []UpdateOption {
	if r.StopOnError == nil {
		return nil
	}
	return []UpdateOption{StopOnError(*r.StopOnError)}
}

// ParseCreateRequest validates and decodes a create batch document.
func ParseCreateRequest(data []byte) (*CreateRequest, error) {
	var req CreateRequest
	if err := decode(createSchema, data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ParseUpdateRequest validates and decodes an update batch document.
func ParseUpdateRequest(data []byte) (*UpdateRequest, error) {
	var req UpdateRequest
	if err := decode(updateSchema, data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func decode(schema func() (*gojsonschema.Schema, error), data []byte, v any) error {
	s, err := schema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
