package testutil

import (
	"embed"
	"encoding/json"

	"github.com/firefly-engineering/desklab/internal/config"
	"github.com/firefly-engineering/desklab/internal/registry"
)

//go:embed fixtures/*
var fixturesFS embed.FS

// LoadFixture loads a fixture file by name.
func LoadFixture(name string) ([]byte, error) {
	return fixturesFS.ReadFile("fixtures/" + name)
}

// LoadConfigFixture parses a TOML config fixture.
func LoadConfigFixture(name string) (*config.Config, error) {
	data, err := LoadFixture(name)
	if err != nil {
		return nil, err
	}
	return config.Parse(string(data))
}

// ValidConfig returns the valid config fixture.
func ValidConfig() (*config.Config, error) {
	return LoadConfigFixture("valid_config.toml")
}

// InvalidConfig returns the error from parsing the invalid config fixture.
func InvalidConfig() error {
	_, err := LoadConfigFixture("invalid_config.toml")
	return err
}

// RegistryDocument returns the sample registry document fixture.
func RegistryDocument() (registry.Document, error) {
	data, err := LoadFixture("registry_document.json")
	if err != nil {
		return nil, err
	}
	var doc registry.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
