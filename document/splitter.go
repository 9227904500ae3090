package document

// Splitter interface defines methods for splitting text into chunks
type Splitter interface {
	SplitText(text string) ([]string, error)
}

// SplitDocuments splits multiple documents using a splitter
func SplitDocuments(splitter Splitter, documents []Document) ([]Document, error) {
	texts := make([]string, len(documents))
	metadatas := make([]map[string]interface{}, len(documents))

	for i, doc := range documents {
		texts[i] = doc.PageContent
		metadatas[i] = doc.Metadata
	}

	return CreateDocuments(splitter, texts, metadatas)
}

// CreateDocuments splits every text and gives each chunk its own copy of the matching
// metadata plus its position within the parent text under MetaChunkIndex.
func CreateDocuments(splitter Splitter, texts []string, metadatas []map[string]interface{}) ([]Document, error) {
	if len(metadatas) == 0 {
		metadatas = make([]map[string]interface{}, len(texts))
	}

	if len(texts) != len(metadatas) {
		return nil, ErrMetadataTextMismatch
	}

	var documents []Document

	for i := range texts {
		chunks, err := splitter.SplitText(texts[i])
		if err != nil {
			return nil, &SplitterError{
				Op:      "create_documents",
				Message: "failed to split document text",
				Err:     err,
			}
		}

		for j, chunk := range chunks {
			meta := copyMetadata(metadatas[i])
			meta[MetaChunkIndex] = j
			documents = append(documents, Document{
				PageContent: chunk,
				Metadata:    meta,
			})
		}
	}

	return documents, nil
}

func copyMetadata(metadata map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
