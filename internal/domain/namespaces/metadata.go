package namespaces

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// MetadataSchemaVersion is the current layout of the namespace metadata blob.
//
//	{"schema_version": 1, "initial_prompt": "...", "config": {...}}
//
// config is carried opaquely; only its JSON-object shape is checked.
const MetadataSchemaVersion = 1

type Metadata struct {
	SchemaVersion int             `json:"schema_version"`
	InitialPrompt string          `json:"initial_prompt,omitempty"`
	Config        json.RawMessage `json:"config,omitempty"`
}

func EncodeMetadata(initialPrompt string, config json.RawMessage) (datatypes.JSON, error) {
	config = bytes.TrimSpace(config)
	if len(config) > 0 {
		if !json.Valid(config) || config[0] != '{' {
			return nil, fmt.Errorf("config must be a JSON object")
		}
	} else {
		config = nil
	}
	raw, err := json.Marshal(Metadata{
		SchemaVersion: MetadataSchemaVersion,
		InitialPrompt: initialPrompt,
		Config:        config,
	})
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func DecodeMetadata(raw datatypes.JSON) (Metadata, error) {
	var m Metadata
	if len(bytes.TrimSpace(raw)) == 0 {
		return Metadata{SchemaVersion: MetadataSchemaVersion}, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	if m.SchemaVersion != MetadataSchemaVersion {
		return Metadata{}, fmt.Errorf("unsupported metadata schema_version %d", m.SchemaVersion)
	}
	return m, nil
}
