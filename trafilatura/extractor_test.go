package trafilatura_test

import (
	"testing"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/trafilatura"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const settingsPage = `<!DOCTYPE html>
<html>
<head>
<title>Settings | Editor Docs</title>
<meta property="og:title" content="Editor Settings">
</head>
<body>
<nav class="sidebar-nav">
<a href="/docs/">Overview</a>
<a href="/docs/settings">Settings</a>
</nav>
<main>
<article>
<h1>Editor Settings</h1>
<p>The editor reads its settings from a JSON file in your home directory.
Every key is optional and unknown keys are ignored with a warning.</p>
<pre><code class="language-json">{"tab_size": 4, "format_on_save": true}</code></pre>
<h2>Precedence</h2>
<p>Project settings override user settings, which override the defaults shipped with the editor.</p>
</article>
</main>
<footer><p>Copyright Example Editor Inc</p></footer>
</body>
</html>`

func TestExtractor_Extract(t *testing.T) {
	t.Parallel()

	t.Run("extracts title and main content", func(t *testing.T) {
		t.Parallel()

		result, err := trafilatura.NewExtractor().Extract(settingsPage)

		require.NoError(t, err)
		assert.NotEmpty(t, result.Title)
		assert.Contains(t, result.ContentHTML, "reads its settings from a JSON file")
		assert.Contains(t, result.ContentHTML, "tab_size")
		assert.Contains(t, result.ContentHTML, "Precedence")
	})

	t.Run("drops navigation and footer", func(t *testing.T) {
		t.Parallel()

		result, err := trafilatura.NewExtractor().Extract(settingsPage)

		require.NoError(t, err)
		assert.NotContains(t, result.ContentHTML, "sidebar-nav")
		assert.NotContains(t, result.ContentHTML, "Copyright Example Editor Inc")
	})

	t.Run("handles minimal HTML", func(t *testing.T) {
		t.Parallel()

		result, err := trafilatura.NewExtractor().Extract(`<html><body><p>Run the command palette with Ctrl+Shift+P.</p></body></html>`)

		require.NoError(t, err)
		assert.Contains(t, result.ContentHTML, "command palette")
	})

	t.Run("keeps keybinding tables and links", func(t *testing.T) {
		t.Parallel()

		page := `<html><head><title>Keys</title></head><body><main><article>
<h1>Key bindings</h1>
<p>Bindings are grouped by context. See <a href="/docs/contexts">contexts</a> for the full list of
contexts that an editor can be in while you type.</p>
<table><tr><th>Action</th><th>Keys</th></tr>
<tr><td>Open file finder</td><td>Ctrl+P</td></tr>
<tr><td>Toggle terminal</td><td>Ctrl+Backquote</td></tr></table>
<p>Bindings in a project file override the user keymap for that project only.</p>
</article></main></body></html>`

		result, err := trafilatura.NewExtractor().Extract(page)

		require.NoError(t, err)
		assert.Contains(t, result.ContentHTML, "Open file finder")
		assert.Contains(t, result.ContentHTML, "/docs/contexts")
	})

	t.Run("precise mode still finds the article", func(t *testing.T) {
		t.Parallel()

		e := &trafilatura.Extractor{Precise: true}
		result, err := e.Extract(settingsPage)

		require.NoError(t, err)
		assert.Contains(t, result.ContentHTML, "reads its settings from a JSON file")
	})

	t.Run("returns EINVALID for empty input", func(t *testing.T) {
		t.Parallel()

		_, err := trafilatura.NewExtractor().Extract(" ")

		require.Error(t, err)
		assert.Equal(t, idedocs.EINVALID, idedocs.ErrorCode(err))
	})
}
