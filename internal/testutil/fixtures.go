package testutil

import (
	"embed"

	"github.com/firefly-engineering/browserbox/internal/config"
	"github.com/firefly-engineering/browserbox/internal/schedule"
)

//go:embed fixtures/*.toml fixtures/*.yaml
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
	return config.Parse(data, name)
}

// ValidConfig returns the valid config fixture.
func ValidConfig() (*config.Config, error) {
	return LoadConfigFixture("valid_config.toml")
}

// InvalidConfig parses the invalid config fixture; the error is expected.
func InvalidConfig() (*config.Config, error) {
	return LoadConfigFixture("invalid_config.toml")
}

// Manifest returns the sample test manifest: three files, three browsers.
func Manifest() (*schedule.Manifest, error) {
	data, err := LoadFixture("manifest.yaml")
	if err != nil {
		return nil, err
	}
	return schedule.ParseManifest(data)
}
