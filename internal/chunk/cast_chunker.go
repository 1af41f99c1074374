package chunk

import (
	"context"
	"fmt"
	"time"
)

// CASTChunkerOptions configures context-aware structural splitting.
type CASTChunkerOptions struct {
	// MaxChars is the non-whitespace character budget per self-chunked
	// node (default: DefaultMaxChunkTokens * TokensPerChar).
	MaxChars int
	// MaxTokens is the token budget enforced in a post-pass over every
	// emitted chunk (default: DefaultMaxChunkTokens).
	MaxTokens int
	// OverlapTokens is the overlap used when a chunk exceeding MaxTokens
	// is re-split instead of truncated (default: DefaultOverlapTokens).
	OverlapTokens int
	// TruncateOversized truncates chunks over MaxTokens to the first N
	// tokens instead of re-splitting with overlap.
	TruncateOversized bool
}

// DefaultCASTChunkerOptions returns sensible defaults.
func DefaultCASTChunkerOptions() CASTChunkerOptions {
	return CASTChunkerOptions{
		MaxChars:      DefaultMaxChunkTokens * TokensPerChar,
		MaxTokens:     DefaultMaxChunkTokens,
		OverlapTokens: DefaultOverlapTokens,
	}
}

// CASTChunker implements context-aware structural splitting (CAST): a
// recursive AST descent that emits a chunk per node once its
// non-whitespace size drops within budget, merging undersized sibling
// chunks and byte-slicing leaves that still overflow.
//
// Grounded on the recursive descent + greedy merge + byte-slice fallback
// algorithm of a reference Rust chunker's generic.rs/splitter.rs,
// expressed here using this package's tree-sitter Node wrapper.
type CASTChunker struct {
	parser    *Parser
	registry  *LanguageRegistry
	extractor *SymbolExtractor
	options   CASTChunkerOptions
}

// NewCASTChunker creates a CAST chunker with the given options.
func NewCASTChunker(options CASTChunkerOptions) *CASTChunker {
	if options.MaxChars <= 0 {
		options.MaxChars = DefaultMaxChunkTokens * TokensPerChar
	}
	if options.MaxTokens <= 0 {
		options.MaxTokens = DefaultMaxChunkTokens
	}
	if options.OverlapTokens < 0 {
		options.OverlapTokens = DefaultOverlapTokens
	}
	registry := DefaultRegistry()
	return &CASTChunker{
		parser:    NewParser(),
		registry:  registry,
		extractor: NewSymbolExtractorWithRegistry(registry),
		options:   options,
	}
}

// scopeFrame is one entry of a propagated scope_path.
type scopeFrame struct {
	kind string
	name string
}

// castChunk is an intermediate chunk before token-budget enforcement.
type castChunk struct {
	content     string
	startByte   uint32
	endByte     uint32
	startLine   int
	endLine     int
	nodeType    string
	scopePath   []scopeFrame
	parentScope string
}

// Chunk splits a file into CAST chunks.
func (c *CASTChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	content := string(file.Content)
	langConfig, ok := c.registry.GetByName(file.Language)
	if !ok {
		return c.chunkByLinesFallback(file)
	}

	tree, err := c.parser.Parse(ctx, file.Content, file.Language)
	if err != nil {
		return nil, fmt.Errorf("CAST: parse failed: %w", err)
	}

	// The root node (module/source_file/program) never self-chunks:
	// descent starts at its named children so a small file still splits
	// along its top-level definitions.
	var raw []castChunk
	if named := tree.Root.NamedChildren(); len(named) > 0 {
		var childChunks []castChunk
		for _, child := range named {
			c.descend(child, file.Content, langConfig, nil, &childChunks)
		}
		raw = mergeAdjacent(childChunks, c.options.MaxChars, file.Content)
	} else {
		c.descend(tree.Root, file.Content, langConfig, nil, &raw)
	}

	now := time.Now()
	chunks := make([]*Chunk, 0, len(raw))
	for _, rc := range raw {
		chunks = append(chunks, c.toChunk(file, content, rc, now))
	}

	chunks = enforceTokenBudget(chunks, c.options.MaxTokens, c.options.OverlapTokens, c.options.TruncateOversized)
	symbols := c.extractor.Extract(tree, file.Content)
	FinalizeSymbols(file.Path, file.Language, symbols)
	attachSymbols(chunks, symbols)
	return chunks, nil
}

// attachSymbols assigns each extracted symbol to the smallest chunk
// whose line span covers the symbol's definition line.
func attachSymbols(chunks []*Chunk, symbols []*Symbol) {
	for _, sym := range symbols {
		var best *Chunk
		bestSpan := -1
		for _, ch := range chunks {
			if sym.StartLine < ch.StartLine || sym.StartLine > ch.EndLine {
				continue
			}
			span := ch.EndLine - ch.StartLine
			if bestSpan < 0 || span < bestSpan {
				best, bestSpan = ch, span
			}
		}
		if best != nil {
			best.Symbols = append(best.Symbols, sym)
		}
	}
}

// SupportedExtensions returns the extensions this chunker handles.
func (c *CASTChunker) SupportedExtensions() []string {
	return c.registry.SupportedExtensions()
}

// descend implements the CAST recursion:
//  1. propagate scope_path
//  2. self-chunk if within budget
//  3. else recurse into named children, then merge greedily
//  4. leaves still over budget are byte-sliced
func (c *CASTChunker) descend(node *Node, source []byte, lang *LanguageConfig, scope []scopeFrame, out *[]castChunk) {
	if node == nil {
		return
	}

	frame, isScope := scopeNodeFrame(node, source, lang)
	childScope := scope
	if isScope {
		childScope = append(append([]scopeFrame{}, scope...), frame)
	}

	size := node.NonWhitespaceCharCount(source)
	if size <= c.options.MaxChars && size > 0 {
		*out = append(*out, c.leafChunk(node, source, childScope))
		return
	}

	named := node.NamedChildren()
	if len(named) == 0 {
		// Leaf with no children that still exceeds budget: byte-slice.
		*out = append(*out, c.sliceByBytes(node, source, childScope)...)
		return
	}

	var childChunks []castChunk
	for _, child := range named {
		c.descend(child, source, lang, childScope, &childChunks)
	}
	*out = append(*out, mergeAdjacent(childChunks, c.options.MaxChars, source)...)
}

// leafChunk emits a single self-chunk for a node within budget.
func (c *CASTChunker) leafChunk(node *Node, source []byte, scope []scopeFrame) castChunk {
	nodeType := node.Type
	return castChunk{
		content:     node.GetContent(source),
		startByte:   node.StartByte,
		endByte:     node.EndByte,
		startLine:   int(node.StartPoint.Row) + 1,
		endLine:     int(node.EndPoint.Row) + 1,
		nodeType:    nodeType,
		scopePath:   scope,
		parentScope: lastScopeName(scope),
	}
}

// sliceByBytes splits a node's content byte-wise into <kind>_part
// chunks, each advancing until MaxChars non-whitespace chars consumed.
func (c *CASTChunker) sliceByBytes(node *Node, source []byte, scope []scopeFrame) []castChunk {
	content := node.GetContent(source)
	if content == "" {
		return nil
	}

	var result []castChunk
	startOffset := 0
	nonWS := 0
	lineAt := func(byteOffset int) int {
		line := int(node.StartPoint.Row) + 1
		for i := 0; i < byteOffset && i < len(content); i++ {
			if content[i] == '\n' {
				line++
			}
		}
		return line
	}

	for i := 0; i < len(content); i++ {
		if !isWhitespaceByte(content[i]) {
			nonWS++
		}
		atEnd := i == len(content)-1
		if nonWS >= c.options.MaxChars || atEnd {
			slice := content[startOffset : i+1]
			result = append(result, castChunk{
				content:     slice,
				startByte:   node.StartByte + uint32(startOffset),
				endByte:     node.StartByte + uint32(i+1),
				startLine:   lineAt(startOffset),
				endLine:     lineAt(i),
				nodeType:    node.Type + "_part",
				scopePath:   scope,
				parentScope: lastScopeName(scope),
			})
			startOffset = i + 1
			nonWS = 0
		}
	}
	return result
}

func isWhitespaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// mergeAdjacent greedily merges consecutive sibling chunks while their
// combined size stays within budget, tagging merged runs "_merged".
// Chunks with different enclosing scopes never merge, so a definition
// keeps its own chunk instead of being folded into a neighbor's scope.
// Chunks that already exceed budget on their own pass through unmerged
// (the recursion that produced them already byte-sliced as needed).
func mergeAdjacent(chunks []castChunk, maxChars int, source []byte) []castChunk {
	if len(chunks) == 0 {
		return nil
	}

	var result []castChunk
	i := 0
	for i < len(chunks) {
		group := []castChunk{chunks[i]}
		groupSize := nonWSCount(chunks[i].content)
		j := i + 1
		for j < len(chunks) {
			next := nonWSCount(chunks[j].content)
			if groupSize+next > maxChars || chunks[j].parentScope != group[0].parentScope {
				break
			}
			group = append(group, chunks[j])
			groupSize += next
			j++
		}

		if len(group) == 1 {
			result = append(result, group[0])
		} else {
			result = append(result, mergeGroup(group))
		}
		i = j
	}
	return result
}

func mergeGroup(group []castChunk) castChunk {
	var content string
	for i, g := range group {
		if i > 0 {
			content += "\n"
		}
		content += g.content
	}
	first, last := group[0], group[len(group)-1]
	return castChunk{
		content:     content,
		startByte:   first.startByte,
		endByte:     last.endByte,
		startLine:   first.startLine,
		endLine:     last.endLine,
		nodeType:    first.nodeType + "_merged",
		scopePath:   first.scopePath,
		parentScope: first.parentScope,
	}
}

func nonWSCount(s string) int {
	n := 0
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			n++
		}
	}
	return n
}

func lastScopeName(scope []scopeFrame) string {
	if len(scope) == 0 {
		return ""
	}
	return scope[len(scope)-1].name
}

// scopeNodeFrame reports whether node introduces a named scope
// (function/method/class/interface/type declaration) and, if so, its
// frame for scope_path propagation.
func scopeNodeFrame(node *Node, source []byte, lang *LanguageConfig) (scopeFrame, bool) {
	kinds := [][]string{lang.FunctionTypes, lang.MethodTypes, lang.ClassTypes, lang.InterfaceTypes, lang.TypeDefTypes}
	for _, set := range kinds {
		for _, t := range set {
			if node.Type == t {
				name := nodeName(node, source, lang)
				if name == "" {
					return scopeFrame{}, false
				}
				return scopeFrame{kind: node.Type, name: name}, true
			}
		}
	}
	return scopeFrame{}, false
}

// nodeName extracts a best-effort identifier name for a scope node.
func nodeName(node *Node, source []byte, lang *LanguageConfig) string {
	for _, t := range []string{"identifier", "field_identifier", "type_identifier", "property_identifier"} {
		if child := node.FindChildByType(t); child != nil {
			return child.GetContent(source)
		}
	}
	return ""
}

func (c *CASTChunker) toChunk(file *FileInput, fullContent string, rc castChunk, now time.Time) *Chunk {
	startByte := rc.startByte
	endByte := rc.endByte
	scopeNames := make([]string, 0, len(rc.scopePath))
	for _, f := range rc.scopePath {
		scopeNames = append(scopeNames, f.name)
	}

	return &Chunk{
		ID:          ComputeChunkID(file.Path, rc.content),
		FilePath:    file.Path,
		Content:     rc.content,
		RawContent:  rc.content,
		ContentType: ContentTypeCode,
		ContentHash: ComputeContentHash(rc.content),
		Language:    file.Language,
		StartLine:   rc.startLine,
		EndLine:     rc.endLine,
		StartByte:   &startByte,
		EndByte:     &endByte,
		NodeType:    rc.nodeType,
		ParentScope: rc.parentScope,
		ScopePath:   scopeNames,
		Metadata:    make(map[string]string),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// chunkByLinesFallback handles languages with no registered grammar.
func (c *CASTChunker) chunkByLinesFallback(file *FileInput) ([]*Chunk, error) {
	cc := &CodeChunker{options: CodeChunkerOptions{MaxChunkTokens: c.options.MaxTokens, OverlapTokens: c.options.OverlapTokens}}
	return cc.chunkByLines(file)
}

var _ Chunker = (*CASTChunker)(nil)
