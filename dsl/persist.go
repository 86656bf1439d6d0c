package dsl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Marshal encodes a model in the persisted JSON format.
func Marshal(m *DomainModel) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("marshal domain model: nil model")
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal domain model: %w", err)
	}
	return data, nil
}

// Unmarshal reconstructs a model from the persisted JSON format.
// The document goes through full schema construction.
func Unmarshal(data []byte) (*DomainModel, error) {
	return BuildDomainModel(data)
}

// Save writes a model to path, creating parent directories.
func Save(path string, m *DomainModel) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write model file: %w", err)
	}
	return nil
}

// Load reads a model previously written by Save.
func Load(path string) (*DomainModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	return Unmarshal(data)
}

// Clone returns a deep copy of the model.
func (m *DomainModel) Clone() *DomainModel {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	var out DomainModel
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return &out
}
