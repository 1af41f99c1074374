package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/coderet/coderet/internal/graph"
	"github.com/coderet/coderet/internal/search"
)

// ResolveNodeInput defines the input schema for the resolve_node tool.
type ResolveNodeInput struct {
	Query string `json:"query" jsonschema:"a node id, symbol name, file path, or label substring to resolve"`
	Kind  string `json:"kind,omitempty" jsonschema:"restrict to a node kind: file, symbol, or chunk"`
}

// ResolveNodeOutput defines the output schema for the resolve_node tool.
type ResolveNodeOutput struct {
	ID         string   `json:"id,omitempty" jsonschema:"the resolved node id"`
	Candidates []string `json:"candidates,omitempty" jsonschema:"candidate node ids when the query is ambiguous"`
}

// NeighborsInput defines the input schema for the graph_neighbors tool.
type NeighborsInput struct {
	Node      string   `json:"node" jsonschema:"the graph node id to expand from"`
	Direction string   `json:"direction,omitempty" jsonschema:"edge direction to follow: out (default), in, or both"`
	MaxHops   int      `json:"max_hops,omitempty" jsonschema:"maximum number of hops to expand, default 1"`
	Kinds     []string `json:"kinds,omitempty" jsonschema:"restrict to edge kinds: defines, contains, calls, imports"`
}

// GraphNodeOutput is one node of a neighbors subgraph.
type GraphNodeOutput struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Label    string `json:"label"`
	FilePath string `json:"file_path,omitempty"`
}

// GraphEdgeOutput is one edge of a neighbors subgraph.
type GraphEdgeOutput struct {
	Src  string `json:"src"`
	Dst  string `json:"dst"`
	Kind string `json:"kind"`
}

// NeighborsOutput defines the output schema for the graph_neighbors tool.
type NeighborsOutput struct {
	Nodes []GraphNodeOutput `json:"nodes"`
	Edges []GraphEdgeOutput `json:"edges"`
}

// EntryPointsInput defines the input schema for the entry_points tool.
type EntryPointsInput struct {
	Names []string `json:"names,omitempty" jsonschema:"symbol names to look for; defaults to well-known entry points (main, run, serve, ...)"`
}

// EntryPointOutput is one discovered entry-point symbol.
type EntryPointOutput struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FilePath string `json:"file_path"`
}

// EntryPointsOutput defines the output schema for the entry_points tool.
type EntryPointsOutput struct {
	EntryPoints []EntryPointOutput `json:"entry_points"`
}

// SetRetriever wires the graph-backed retriever into the server and
// registers the graph exploration tools (resolve_node, graph_neighbors,
// entry_points). Call before Serve; a nil retriever leaves the server
// with its search-only tool set.
func (s *Server) SetRetriever(r *search.Retriever) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r == nil {
		return
	}
	s.retriever = r

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "resolve_node",
		Description: "Resolve a name, path, or label to a code-graph node id. Reports candidates when the query is ambiguous. Use before graph_neighbors to find a starting node.",
	}, s.mcpResolveNodeHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "graph_neighbors",
		Description: "Explore the code graph around a node: which files define which symbols, which symbols call or import which. Bounded by max_hops.",
	}, s.mcpNeighborsHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "entry_points",
		Description: "List well-known entry-point symbols (main, run, serve, ...) as starting points for exploring an unfamiliar codebase.",
	}, s.mcpEntryPointsHandler)

	s.logger.Debug("Registered graph tools", slog.Int("count", 3))
}

func (s *Server) mcpResolveNodeHandler(ctx context.Context, _ *mcp.CallToolRequest, input ResolveNodeInput) (
	*mcp.CallToolResult,
	ResolveNodeOutput,
	error,
) {
	if input.Query == "" {
		return nil, ResolveNodeOutput{}, NewInvalidParamsError("query parameter is required")
	}
	r := s.getRetriever()
	if r == nil {
		return nil, ResolveNodeOutput{}, NewMethodNotFoundError("resolve_node")
	}

	kind, err := parseNodeKind(input.Kind)
	if err != nil {
		return nil, ResolveNodeOutput{}, NewInvalidParamsError(err.Error())
	}

	id, err := r.ResolveNode(input.Query, kind)
	if err != nil {
		var ambiguous *graph.ErrAmbiguous
		if errors.As(err, &ambiguous) {
			out := ResolveNodeOutput{Candidates: make([]string, len(ambiguous.Candidates))}
			for i, c := range ambiguous.Candidates {
				out.Candidates[i] = string(c)
			}
			return nil, out, nil
		}
		return nil, ResolveNodeOutput{}, MapError(err)
	}
	return nil, ResolveNodeOutput{ID: string(id)}, nil
}

func (s *Server) mcpNeighborsHandler(ctx context.Context, _ *mcp.CallToolRequest, input NeighborsInput) (
	*mcp.CallToolResult,
	NeighborsOutput,
	error,
) {
	if input.Node == "" {
		return nil, NeighborsOutput{}, NewInvalidParamsError("node parameter is required")
	}
	r := s.getRetriever()
	if r == nil {
		return nil, NeighborsOutput{}, NewMethodNotFoundError("graph_neighbors")
	}

	direction := search.DirectionOut
	switch strings.ToLower(input.Direction) {
	case "", "out":
	case "in":
		direction = search.DirectionIn
	case "both":
		direction = search.DirectionBoth
	default:
		return nil, NeighborsOutput{}, NewInvalidParamsError(fmt.Sprintf("invalid direction %q: use out, in, or both", input.Direction))
	}

	kinds := make([]graph.EdgeKind, 0, len(input.Kinds))
	for _, k := range input.Kinds {
		kind, err := parseEdgeKind(k)
		if err != nil {
			return nil, NeighborsOutput{}, NewInvalidParamsError(err.Error())
		}
		kinds = append(kinds, kind)
	}

	sub, err := r.Neighbors(graph.NodeID(input.Node), direction, input.MaxHops, kinds...)
	if err != nil {
		return nil, NeighborsOutput{}, MapError(err)
	}

	out := NeighborsOutput{
		Nodes: make([]GraphNodeOutput, len(sub.Nodes)),
		Edges: make([]GraphEdgeOutput, len(sub.Edges)),
	}
	for i, n := range sub.Nodes {
		out.Nodes[i] = GraphNodeOutput{ID: string(n.ID), Kind: string(n.Kind), Label: n.Label, FilePath: n.FilePath}
	}
	for i, e := range sub.Edges {
		out.Edges[i] = GraphEdgeOutput{Src: string(e.Src), Dst: string(e.Dst), Kind: string(e.Kind)}
	}
	return nil, out, nil
}

func (s *Server) mcpEntryPointsHandler(ctx context.Context, _ *mcp.CallToolRequest, input EntryPointsInput) (
	*mcp.CallToolResult,
	EntryPointsOutput,
	error,
) {
	r := s.getRetriever()
	if r == nil {
		return nil, EntryPointsOutput{}, NewMethodNotFoundError("entry_points")
	}

	points := r.EntryPoints(input.Names...)
	out := EntryPointsOutput{EntryPoints: make([]EntryPointOutput, len(points))}
	for i, p := range points {
		out.EntryPoints[i] = EntryPointOutput{ID: string(p.ID), Name: p.Name, FilePath: p.FilePath}
	}
	return nil, out, nil
}

func (s *Server) getRetriever() *search.Retriever {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retriever
}

func parseNodeKind(kind string) (graph.NodeKind, error) {
	switch strings.ToLower(kind) {
	case "":
		return "", nil
	case "file":
		return graph.NodeFile, nil
	case "symbol":
		return graph.NodeSymbol, nil
	case "chunk":
		return graph.NodeChunk, nil
	default:
		return "", fmt.Errorf("invalid node kind %q: use file, symbol, or chunk", kind)
	}
}

func parseEdgeKind(kind string) (graph.EdgeKind, error) {
	switch strings.ToLower(kind) {
	case "defines":
		return graph.EdgeDefines, nil
	case "contains":
		return graph.EdgeContains, nil
	case "calls":
		return graph.EdgeCalls, nil
	case "imports":
		return graph.EdgeImports, nil
	default:
		return "", fmt.Errorf("invalid edge kind %q: use defines, contains, calls, or imports", kind)
	}
}
