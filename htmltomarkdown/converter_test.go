package htmltomarkdown_test

import (
	"strings"
	"testing"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/htmltomarkdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverter_Convert(t *testing.T) {
	t.Parallel()

	t.Run("converts headings as ATX", func(t *testing.T) {
		t.Parallel()

		md, err := htmltomarkdown.NewConverter().Convert(`<h1>Title</h1><h2>Subtitle</h2><p>Body</p>`)

		require.NoError(t, err)
		assert.Contains(t, md, "# Title")
		assert.Contains(t, md, "## Subtitle")
	})

	t.Run("keeps code block language hint", func(t *testing.T) {
		t.Parallel()

		html := `<pre><code class="language-json">{"key": "value"}</code></pre>`

		md, err := htmltomarkdown.NewConverter().Convert(html)

		require.NoError(t, err)
		assert.Contains(t, md, "```json")
		assert.Contains(t, md, `{"key": "value"}`)
	})

	t.Run("converts tables", func(t *testing.T) {
		t.Parallel()

		html := `<table>
<thead><tr><th>Flag</th><th>Default</th></tr></thead>
<tbody><tr><td>--verbose</td><td>false</td></tr></tbody>
</table>`

		md, err := htmltomarkdown.NewConverter().Convert(html)

		require.NoError(t, err)
		assert.Contains(t, md, "Flag")
		assert.Contains(t, md, "--verbose")
		assert.Contains(t, md, "|")
	})

	t.Run("collapses blank lines and trims the result", func(t *testing.T) {
		t.Parallel()

		html := `<div><p>One</p><div><br><br><br></div><p>Two</p></div>`

		md, err := htmltomarkdown.NewConverter().Convert(html)

		require.NoError(t, err)
		assert.NotContains(t, md, "\n\n\n")
		assert.Equal(t, strings.TrimSpace(md), md)
		assert.Contains(t, md, "One")
		assert.Contains(t, md, "Two")
	})

	t.Run("is deterministic", func(t *testing.T) {
		t.Parallel()

		html := `<h2>Install</h2><p>Run <code>tool init</code> first.</p><ul><li>a</li><li>b</li></ul>`
		conv := htmltomarkdown.NewConverter()

		first, err := conv.Convert(html)
		require.NoError(t, err)
		second, err := conv.Convert(html)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("returns EINVALID for empty input", func(t *testing.T) {
		t.Parallel()

		_, err := htmltomarkdown.NewConverter().Convert("  \n ")

		require.Error(t, err)
		assert.Equal(t, idedocs.EINVALID, idedocs.ErrorCode(err))
	})
}
