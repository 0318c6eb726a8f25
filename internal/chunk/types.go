package chunk

// Chunking defaults (characters, not tokens)
const (
	DefaultMaxChars      = 900
	DefaultMinChars      = 240
	DefaultMinFinalChars = 80
	MinTokenLength       = 3
)

// Metadata is the descriptive information a chunk inherits from its document.
type Metadata struct {
	Author string `json:"author"`
	Kind   string `json:"kind"`
	Date   string `json:"date"`
	Topic  string `json:"topic"`
}

// Chunk is a retrievable passage of the corpus.
type Chunk struct {
	ID       int            // Dense, assigned in document order per load
	Text     string         // Cleaned passage
	Topic    string         // Inherited from the source document
	Date     string         // Inherited from the source document
	Kind     string         // Inherited from the source document
	Author   string         // Inherited from the source document
	Tokens   []string       // Normalized tokens of Text
	TermFreq map[string]int // Token -> occurrences
	Length   int            // Token count, at least 1
}

// NewChunk builds a chunk from text, computing its token statistics.
func NewChunk(id int, text string, meta Metadata, tok *Tokenizer) *Chunk {
	tokens := tok.Tokenize(text)
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	length := len(tokens)
	if length == 0 {
		length = 1
	}
	return &Chunk{
		ID:       id,
		Text:     text,
		Topic:    meta.Topic,
		Date:     meta.Date,
		Kind:     meta.Kind,
		Author:   meta.Author,
		Tokens:   tokens,
		TermFreq: tf,
		Length:   length,
	}
}

// Meta returns the chunk's inherited metadata.
func (c *Chunk) Meta() Metadata {
	return Metadata{Author: c.Author, Kind: c.Kind, Date: c.Date, Topic: c.Topic}
}
