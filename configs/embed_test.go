package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigTemplateIsValidYAML(t *testing.T) {
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(ConfigTemplate), &doc))

	for _, section := range []string{"server", "files", "database", "embedding", "chunking", "search", "sync", "logging"} {
		assert.Contains(t, doc, section)
	}
}
