package mcp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestUserPromptShape(t *testing.T) {
	res := userPrompt("desc", "body")
	assert.Equal(t, "desc", res.Description)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, mcp.Role("user"), res.Messages[0].Role)
	text, ok := res.Messages[0].Content.(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "body", text.Text)
}

func TestPromptTemplatesInterpolate(t *testing.T) {
	remember := fmt.Sprintf(rememberConversationTemplate, "db migration", "use pgx")
	assert.Contains(t, remember, "Topic: db migration")
	assert.Contains(t, remember, "Key points: use pgx")

	recall := fmt.Sprintf(recallContextTemplate, "deployment", "deployment")
	assert.Contains(t, recall, "Recall what you know about: deployment")
	assert.Contains(t, recall, `Search memory for "deployment"`)
}
