package datasource

import (
	"testing"

	"github.com/Abraxas-365/coursekb/document"
	"github.com/stretchr/testify/assert"
)

func TestDocument_ToDocument(t *testing.T) {
	d := Document{
		Content:  "page text",
		Metadata: map[string]interface{}{"page": 1},
		Source:   "CourseMaterials/deep_learning/ffn.pdf",
	}

	doc := d.ToDocument()
	assert.Equal(t, "page text", doc.PageContent)
	assert.Equal(t, d.Source, doc.Metadata[document.MetaSource])
	assert.Equal(t, 1, doc.Metadata["page"])
	assert.NotContains(t, d.Metadata, document.MetaSource)

	d.Metadata[document.MetaSource] = "override.pdf"
	assert.Equal(t, "override.pdf", d.ToDocument().Metadata[document.MetaSource])
}

func TestLoadOptions(t *testing.T) {
	o := NewLoadOptions(
		WithMaxItems(2),
		WithFilter(func(m map[string]interface{}) bool { return m["keep"] == true }),
	)

	assert.False(t, o.Full(1))
	assert.True(t, o.Full(2))
	assert.True(t, o.Accept(map[string]interface{}{"keep": true}))
	assert.False(t, o.Accept(map[string]interface{}{}))

	unlimited := NewLoadOptions()
	assert.False(t, unlimited.Full(1000))
	assert.True(t, unlimited.Accept(nil))
}
