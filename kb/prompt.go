package kb

import (
	"fmt"
	"strings"

	"github.com/Abraxas-365/coursekb/document"
	"github.com/Abraxas-365/coursekb/vectorstore"
)

// DefaultPromptTemplate restricts the model to the retrieved context
const DefaultPromptTemplate = `You are a helpful assistant.
Answer the question using ONLY the Context below.
If the answer is not in the Context, say "I don't know based on the provided context."
Context:
{context}

Question:
{question}
`

const (
	unknownSource = "unknown_source"
	unknownPage   = "unknown_page"
)

// Source identifies where a retrieved chunk came from
type Source struct {
	Index  int     `json:"index"`
	Source string  `json:"source"`
	Page   string  `json:"page"`
	Score  float32 `json:"score"`
}

func sourceOf(i int, d vectorstore.Document) Source {
	doc := d.ToDocument()
	src, ok := doc.MetaString(document.MetaSource)
	if !ok {
		src = unknownSource
	}
	page, ok := doc.MetaString(document.MetaPageLabel)
	if !ok {
		if page, ok = doc.MetaString(document.MetaPage); !ok {
			page = unknownPage
		}
	}
	return Source{Index: i, Source: src, Page: page, Score: d.Score}
}

// Sources lists the citation of each retrieved chunk, numbered from 1
func Sources(docs []vectorstore.Document) []Source {
	out := make([]Source, len(docs))
	for i, d := range docs {
		out[i] = sourceOf(i+1, d)
	}
	return out
}

// FormatDocs renders chunks as "[i] (source, p.page)" headers followed by the trimmed text
func FormatDocs(docs []vectorstore.Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		s := sourceOf(i+1, d)
		parts[i] = fmt.Sprintf("[%d] (%s, p.%s)\n%s", s.Index, s.Source, s.Page, strings.TrimSpace(d.PageContent))
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt fills the template in one pass, so placeholders inside the context stay literal
func BuildPrompt(template, context, question string) string {
	return strings.NewReplacer("{context}", context, "{question}", question).Replace(template)
}
