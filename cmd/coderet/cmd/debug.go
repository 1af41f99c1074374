package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/coderet/coderet/internal/config"
	"github.com/coderet/coderet/internal/index"
	"github.com/coderet/coderet/internal/store"
)

// DebugInfo is the full diagnostic snapshot printed by 'coderet debug'.
type DebugInfo struct {
	ProjectRoot string `json:"project_root"`
	IndexPath   string `json:"index_path"`

	FileCount  int       `json:"file_count"`
	ChunkCount int       `json:"chunk_count"`
	IndexedAt  time.Time `json:"indexed_at"`

	Languages map[string]float64 `json:"languages"`

	EmbedderProvider string `json:"embedder_provider"`
	EmbedderModel    string `json:"embedder_model"`

	MetadataSizeBytes int64 `json:"metadata_size_bytes"`
	BM25SizeBytes     int64 `json:"bm25_size_bytes"`
	VectorSizeBytes   int64 `json:"vector_size_bytes"`
}

func newDebugCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Print a diagnostic snapshot of the current branch's index",
		Long: `Collect and print everything useful for bug reports: file and chunk
counts, language breakdown, embedder configuration, and on-disk sizes
for the metadata store, BM25 index, and vector store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDebug(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDebug(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	dataDir := index.CurrentBranchDataDir(root, ".coderet")
	metadataPath := dataDir + string(os.PathSeparator) + "store.db"
	if !fileExists(metadataPath) {
		return fmt.Errorf("no index found in %s\nRun 'coderet index' to create one", root)
	}

	info, err := collectDebugInfo(ctx, root, dataDir)
	if err != nil {
		return fmt.Errorf("failed to collect debug info: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	return printDebugInfo(cmd, info)
}

func collectDebugInfo(ctx context.Context, root, dataDir string) (DebugInfo, error) {
	info := DebugInfo{
		ProjectRoot: root,
		IndexPath:   dataDir,
		Languages:   make(map[string]float64),
	}

	metadataPath := dataDir + string(os.PathSeparator) + "store.db"
	metadata, err := store.NewSQLiteStore(metadataPath)
	if err != nil {
		return info, fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = metadata.Close() }()

	projectID := hashString(root)
	project, err := metadata.GetProject(ctx, projectID)
	if err != nil {
		project = nil
	}

	if project != nil {
		info.FileCount = project.FileCount
		info.ChunkCount = project.ChunkCount
		info.IndexedAt = project.IndexedAt

		if langs, err := languageDistribution(ctx, metadata, projectID); err == nil {
			info.Languages = langs
		}
	}

	info.MetadataSizeBytes = getFileSize(metadataPath)

	bm25SQLitePath := dataDir + string(os.PathSeparator) + "bm25.db"
	bm25BlevePath := dataDir + string(os.PathSeparator) + "bm25.bleve"
	if size := getFileSize(bm25SQLitePath); size > 0 {
		info.BM25SizeBytes = size
	} else {
		info.BM25SizeBytes = getDirSize(bm25BlevePath)
	}

	info.VectorSizeBytes = getFileSize(dataDir + string(os.PathSeparator) + "vectors.hnsw")

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}

	info.EmbedderProvider = cfg.Embeddings.Provider
	if info.EmbedderProvider == "" {
		info.EmbedderProvider = "hugot"
	}

	info.EmbedderModel = cfg.Embeddings.Model
	if info.EmbedderModel == "" {
		info.EmbedderModel = "embeddinggemma"
	}

	return info, nil
}

// languageDistribution walks every indexed file once and buckets its
// extension into a normalized language, returning the fraction of files
// each bucket accounts for.
func languageDistribution(ctx context.Context, metadata store.MetadataStore, projectID string) (map[string]float64, error) {
	counts := make(map[string]int)
	total := 0

	cursor := ""
	for {
		files, next, err := metadata.ListFiles(ctx, projectID, cursor, 500)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			ext := normalizeExtension(strings.TrimPrefix(extOf(f.Path), "."))
			if ext == "" {
				continue
			}
			counts[ext]++
			total++
		}
		if next == "" {
			break
		}
		cursor = next
	}

	if total == 0 {
		return map[string]float64{}, nil
	}

	dist := make(map[string]float64, len(counts))
	for lang, n := range counts {
		dist[lang] = float64(n) / float64(total)
	}
	return dist, nil
}

func extOf(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 || idx == len(path)-1 {
		return ""
	}
	return path[idx+1:]
}

// normalizeExtension collapses near-synonymous file extensions into the
// single bucket used for language-distribution reporting.
func normalizeExtension(ext string) string {
	ext = strings.ToLower(ext)
	switch ext {
	case "tsx":
		return "ts"
	case "jsx", "mjs":
		return "js"
	case "yml":
		return "yaml"
	case "htm":
		return "html"
	default:
		return ext
	}
}

func printDebugInfo(cmd *cobra.Command, info DebugInfo) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "CodeRet Debug Info")
	fmt.Fprintln(w, "==================")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Project:  %s\n", info.ProjectRoot)
	fmt.Fprintf(w, "Index:    %s\n", info.IndexPath)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "FILES & CHUNKS")
	fmt.Fprintf(w, "  Files:    %s\n", formatNumber(info.FileCount))
	fmt.Fprintf(w, "  Chunks:   %s\n", formatNumber(info.ChunkCount))
	fmt.Fprintf(w, "  Indexed:  %s\n", formatAge(info.IndexedAt))
	fmt.Fprintf(w, "  Languages: %s\n", formatLanguages(info.Languages))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "EMBEDDER")
	fmt.Fprintf(w, "  Provider: %s\n", info.EmbedderProvider)
	fmt.Fprintf(w, "  Model:    %s\n", info.EmbedderModel)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "BM25 INDEX")
	fmt.Fprintf(w, "  Size:     %s\n", store.FormatBytes(info.BM25SizeBytes))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "VECTOR STORE")
	fmt.Fprintf(w, "  Size:     %s\n", store.FormatBytes(info.VectorSizeBytes))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "STORAGE")
	fmt.Fprintf(w, "  Metadata: %s\n", store.FormatBytes(info.MetadataSizeBytes))
	fmt.Fprintf(w, "  BM25:     %s\n", store.FormatBytes(info.BM25SizeBytes))
	fmt.Fprintf(w, "  Vector:   %s\n", store.FormatBytes(info.VectorSizeBytes))

	return nil
}

// formatAge renders t as a coarse relative duration for human display.
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	d := time.Since(t)
	switch {
	case d < 30*time.Second:
		return "just now"
	case d < time.Hour:
		minutes := int(d / time.Minute)
		if minutes < 1 {
			minutes = 1
		}
		return pluralize(minutes, "minute") + " ago"
	case d < 24*time.Hour:
		hours := int(d / time.Hour)
		return pluralize(hours, "hour") + " ago"
	default:
		days := int(d / (24 * time.Hour))
		return pluralize(days, "day") + " ago"
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

// formatNumber renders n with comma thousands separators.
func formatNumber(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var groups []string
	for len(s) > 3 {
		groups = append([]string{s[len(s)-3:]}, groups...)
		s = s[:len(s)-3]
	}
	groups = append([]string{s}, groups...)

	out := strings.Join(groups, ",")
	if neg {
		out = "-" + out
	}
	return out
}

// formatLanguages renders a language->fraction map as a descending,
// comma-separated "name (pct%)" summary.
func formatLanguages(langs map[string]float64) string {
	if len(langs) == 0 {
		return "none"
	}

	names := make([]string, 0, len(langs))
	for name := range langs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if langs[names[i]] != langs[names[j]] {
			return langs[names[i]] > langs[names[j]]
		}
		return names[i] < names[j]
	})

	parts := make([]string, 0, len(names))
	for _, name := range names {
		pct := int(langs[name]*100 + 0.5)
		parts = append(parts, fmt.Sprintf("%s (%d%%)", name, pct))
	}
	return strings.Join(parts, ", ")
}
