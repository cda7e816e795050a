package resources_test

import (
	"testing"

	"git.sr.ht/~jakintosh/warrant/internal/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate_EscapesInput(t *testing.T) {
	page, err := resources.RenderTemplate("users.html", map[string]any{
		"Title": "Users",
		"Users": []map[string]string{
			{"Name": "<script>", "Email": "a@example.com", "Role": "viewer"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, string(page), "&lt;script&gt;")
	assert.NotContains(t, string(page), "<script>")
}

func TestRenderTemplate_Unknown(t *testing.T) {
	_, err := resources.RenderTemplate("missing.html", nil)
	assert.Error(t, err)
}
