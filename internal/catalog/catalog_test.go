package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAsset(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDirectAsset(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "just-cancel.html", "<html>direct</html>")
	writeAsset(t, dir, "just-cancel-abc123.html", "<html>hashed</html>")

	c, err := Load(dir, "v1")
	require.NoError(t, err)

	w, ok := c.ByID("just-cancel")
	require.True(t, ok)
	assert.Equal(t, "<html>direct</html>", w.HTML)
	assert.Equal(t, "ui://widget/just-cancel.html?v=v1", w.TemplateURI)
}

func TestLoadHashedFallbackPicksNewest(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "just-cancel-aaa.html", "<html>old</html>")
	writeAsset(t, dir, "just-cancel-zzz.html", "<html>new</html>")

	c, err := Load(dir, "v1")
	require.NoError(t, err)

	w, _ := c.ByID("just-cancel")
	assert.Equal(t, "<html>new</html>", w.HTML)
}

func TestLoadMissingAssets(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"), "v1")
	assert.Error(t, err)

	_, err = Load(t.TempDir(), "v1") // dir exists but is empty
	assert.Error(t, err)
}

func TestLookups(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "just-cancel.html", "<html/>")
	c, err := Load(dir, "v1")
	require.NoError(t, err)

	w, ok := c.ByURI("ui://widget/just-cancel.html?v=v1")
	require.True(t, ok)
	assert.Equal(t, "just-cancel", w.ID)

	_, ok = c.ByURI("ui://widget/unknown.html")
	assert.False(t, ok)

	// Loose lookup ignores the cache-busting version.
	w, ok = c.ByURILoose("ui://widget/just-cancel.html?v=something-else")
	require.True(t, ok)
	assert.Equal(t, "just-cancel", w.ID)
}

func TestSchemasAreValidJSON(t *testing.T) {
	var v map[string]any
	require.NoError(t, json.Unmarshal(ToolInputSchema, &v))
	assert.Equal(t, false, v["additionalProperties"])

	require.NoError(t, json.Unmarshal(ToolOutputSchema, &v))
	assert.Contains(t, v["properties"], "summary")
}

func TestWidgetMeta(t *testing.T) {
	w := Widget{TemplateURI: "ui://widget/just-cancel.html?v=1"}
	m := w.Meta()
	assert.Equal(t, w.TemplateURI, m["openai/outputTemplate"])
	assert.Equal(t, true, m["openai/resultCanProduceWidget"])
}
