package cli

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var embeddedDefaultConfigurationContent []byte

const embeddedConfigurationInvalidTemplateConstant = "embedded default configuration is invalid: %w"

// EmbeddedDefaultConfiguration returns a copy of the embedded default
// configuration after validating that it is well-formed YAML.
func EmbeddedDefaultConfiguration() ([]byte, error) {
	var parsedConfiguration map[string]any
	if parseError := yaml.Unmarshal(embeddedDefaultConfigurationContent, &parsedConfiguration); parseError != nil {
		return nil, fmt.Errorf(embeddedConfigurationInvalidTemplateConstant, parseError)
	}

	duplicatedContent := make([]byte, len(embeddedDefaultConfigurationContent))
	copy(duplicatedContent, embeddedDefaultConfigurationContent)
	return duplicatedContent, nil
}
