package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/Aman-CERP/ragcontext/internal/chunk"
	"github.com/Aman-CERP/ragcontext/internal/errors"
)

// IngestExtensions are the formats Ingest reads. PDFs contribute the text
// of every page.
var IngestExtensions = []string{".txt", ".md", ".markdown", ".pdf"}

var (
	controlChars  = regexp.MustCompile(`[\x00-\x1F\x7F-\x9F]`)
	disallowed    = regexp.MustCompile(`[^\x20-\x7EáéíóúÁÉÍÓÚñÑüÜ.,;:!?¡¿'"\-() ]`)
	sentenceBreak = regexp.MustCompile(`\.\s+`)
	whitespace    = regexp.MustCompile(`\s+`)
	quoteReplacer = strings.NewReplacer(`"`, "'", "“", "'", "”", "'", "‘", "'", "’", "'", "–", "-", "—", "-")
)

// ExtractParagraphs cleans extracted text and splits it after every period
// followed by whitespace.
func ExtractParagraphs(text string) []string {
	s := strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(text)
	s = controlChars.ReplaceAllString(s, "")
	s = quoteReplacer.Replace(s)
	s = disallowed.ReplaceAllString(s, "")
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if s == "" {
		return nil
	}

	var out []string
	start := 0
	for _, loc := range sentenceBreak.FindAllStringIndex(s, -1) {
		out = append(out, s[start:loc[0]+1])
		start = loc[1]
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// Ingest converts every supported file under dir into a document carrying
// the given metadata. Files are visited in lexical path order; empty and
// unreadable files are skipped.
func Ingest(ctx context.Context, dir string, meta chunk.Metadata) ([]Document, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, errors.New(errors.ErrCodeInvalidPath,
			fmt.Sprintf("not a directory: %s", dir), err)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if supportedExtension(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := readSource(p)
		if err != nil {
			slog.Warn("ingest_read_failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		lines := ExtractParagraphs(text)
		if len(lines) == 0 {
			slog.Debug("ingest_empty_file", slog.String("path", p))
			continue
		}
		doc := Document{Lines: lines}.WithDefaults(meta)
		docs = append(docs, doc)
		slog.Debug("ingest_file",
			slog.String("path", p),
			slog.Int("paragraphs", len(lines)))
	}
	return docs, nil
}

// WriteJSON writes documents as an indented corpus file, replacing path
// atomically.
func WriteJSON(path string, docs []Document) error {
	if docs == nil {
		docs = []Document{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal corpus: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create corpus dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write corpus: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace corpus: %w", err)
	}
	return nil
}

func supportedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range IngestExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
