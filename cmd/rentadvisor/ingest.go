package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taxease/rentadvisor/internal/knowledge"
)

var ingestChunkSize int

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|dir>...",
	Short: "Ingest guideline documents into the knowledge index",
	Long: `Ingest reads plain-text guideline documents, splits them into passages,
and adds them to the knowledge index. Run it once per corpus update;
the analysis pipeline only reads the index.

Examples:
  # Ingest a directory of guideline files
  rentadvisor ingest ./guidelines

  # Ingest individual files with smaller passages
  rentadvisor ingest --chunk-size 800 rental_expenses.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 1200, "maximum passage size in bytes")
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	var docs []knowledge.Document
	for _, arg := range args {
		collected, err := collectDocuments(arg, ingestChunkSize)
		if err != nil {
			return err
		}
		docs = append(docs, collected...)
	}

	if err := a.store.Ingest(cmd.Context(), docs); err != nil {
		return fmt.Errorf("ingesting documents: %w", err)
	}

	a.logger.Info("ingest complete",
		zap.Int("documents", len(docs)),
		zap.Int("corpus_size", a.store.Count()),
	)
	fmt.Printf("Ingested %d passages (corpus now %d)\n", len(docs), a.store.Count())
	return nil
}

// collectDocuments turns a file or directory of text files into
// chunked knowledge documents.
func collectDocuments(path string, chunkSize int) ([]knowledge.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			files = append(files, filepath.Join(path, e.Name()))
		}
	} else {
		files = []string{path}
	}

	var docs []knowledge.Document
	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		base := filepath.Base(f)
		for i, chunk := range chunkText(string(content), chunkSize) {
			docs = append(docs, knowledge.Document{
				ID:       fmt.Sprintf("%s#%d", base, i),
				Content:  chunk,
				Metadata: map[string]string{"source": base},
			})
		}
	}
	return docs, nil
}

// chunkText splits text on paragraph boundaries, packing paragraphs
// into chunks of at most maxSize bytes. Oversized single paragraphs
// become their own chunk rather than being split mid-sentence.
func chunkText(text string, maxSize int) []string {
	paragraphs := strings.Split(text, "\n\n")

	var chunks []string
	var current strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p)+2 > maxSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
