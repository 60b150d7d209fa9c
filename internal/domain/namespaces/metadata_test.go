package namespaces

import (
	"encoding/json"
	"testing"

	"gorm.io/datatypes"
)

func TestEncodeDecodeMetadata(t *testing.T) {
	raw, err := EncodeMetadata("be concise", json.RawMessage(`{"temperature":0.2}`))
	if err != nil {
		t.Fatalf("EncodeMetadata: %v", err)
	}
	m, err := DecodeMetadata(raw)
	if err != nil {
		t.Fatalf("DecodeMetadata: %v", err)
	}
	if m.SchemaVersion != MetadataSchemaVersion {
		t.Fatalf("schema_version: want=%d got=%d", MetadataSchemaVersion, m.SchemaVersion)
	}
	if m.InitialPrompt != "be concise" {
		t.Fatalf("initial_prompt: got=%q", m.InitialPrompt)
	}
	if string(m.Config) != `{"temperature":0.2}` {
		t.Fatalf("config: got=%s", m.Config)
	}
}

func TestEncodeMetadataRejectsNonObjectConfig(t *testing.T) {
	if _, err := EncodeMetadata("", json.RawMessage(`[1,2]`)); err == nil {
		t.Fatalf("EncodeMetadata: expected error for array config")
	}
	if _, err := EncodeMetadata("", json.RawMessage(`{bad`)); err == nil {
		t.Fatalf("EncodeMetadata: expected error for invalid json")
	}
	if _, err := EncodeMetadata("p", nil); err != nil {
		t.Fatalf("EncodeMetadata(nil config): %v", err)
	}
}

func TestDecodeMetadataRejectsUnknownSchema(t *testing.T) {
	if _, err := DecodeMetadata(datatypes.JSON(`{"schema_version":7}`)); err == nil {
		t.Fatalf("DecodeMetadata: expected error for schema_version 7")
	}
	m, err := DecodeMetadata(nil)
	if err != nil || m.SchemaVersion != MetadataSchemaVersion {
		t.Fatalf("DecodeMetadata(empty): m=%+v err=%v", m, err)
	}
}

func TestCheckpointPattern(t *testing.T) {
	if !IsCheckpointHash("ckpt_0123456789abcdef") {
		t.Fatalf("valid checkpoint rejected")
	}
	for _, bad := range []string{"", "ckpt_", "ckpt_XYZ12345", "chk_0123456789"} {
		if IsCheckpointHash(bad) {
			t.Fatalf("invalid checkpoint accepted: %q", bad)
		}
	}
}
