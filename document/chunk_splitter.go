package document

import "strings"

// CharacterSplitter packs separator-delimited parts into chunks of at most ChunkSize bytes.
type CharacterSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separator    string
}

func NewCharacterSplitter(chunkSize int, chunkOverlap int, separator string) (*CharacterSplitter, error) {
	if err := validateWindow("new_character_splitter", chunkSize, chunkOverlap); err != nil {
		return nil, err
	}
	if separator == "" {
		separator = " "
	}

	return &CharacterSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Separator:    separator,
	}, nil
}

func (cs *CharacterSplitter) SplitText(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var chunks []string
	var current strings.Builder
	pending := false

	flush := func() {
		pending = false
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		tail := current.String()
		current.Reset()
		if cs.ChunkOverlap > 0 && len(tail) > 0 {
			if len(tail) > cs.ChunkOverlap {
				tail = tail[len(tail)-cs.ChunkOverlap:]
			}
			current.WriteString(tail)
		}
	}

	for _, part := range strings.Split(text, cs.Separator) {
		if part == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(cs.Separator)+len(part) > cs.ChunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(cs.Separator)
		}
		current.WriteString(part)
		pending = true
	}

	if pending {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
	}

	return chunks, nil
}
