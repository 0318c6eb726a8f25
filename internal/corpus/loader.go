package corpus

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/Aman-CERP/ragcontext/internal/chunk"
	"github.com/Aman-CERP/ragcontext/internal/errors"
)

// Load reads a corpus file and applies default metadata.
// Missing and malformed files return a typed error; callers decide whether
// that means an empty corpus.
func Load(path string, defaults chunk.Metadata) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.New(errors.ErrCodeCorpusNotFound,
				fmt.Sprintf("corpus file not found: %s", path), err).
				WithSuggestion("run 'ragcontext ingest <dir>' or set corpus.path")
		}
		return nil, errors.New(errors.ErrCodeFilePermission,
			fmt.Sprintf("cannot read corpus file: %s", path), err)
	}

	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, errors.New(errors.ErrCodeCorpusInvalid,
			fmt.Sprintf("corpus file is not a JSON array of documents: %s", path), err)
	}

	for i := range docs {
		docs[i] = docs[i].WithDefaults(defaults)
	}
	return docs, nil
}

// Fingerprint identifies a corpus revision as "<size>-<mtime ms>".
// It returns nil when the file cannot be stat'ed.
func Fingerprint(path string) *string {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	fp := fmt.Sprintf("%d-%d", info.Size(), info.ModTime().UnixMilli())
	return &fp
}
