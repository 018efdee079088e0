package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/hybridqa/pkg/domain"
)

// GraphOverlay contains run data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []domain.NodeID
	CurrentNode  domain.NodeID
}

// OverlayFromPath marks every node on path as visited and the last one as current.
func OverlayFromPath(path []domain.NodeID) *GraphOverlay {
	if len(path) == 0 {
		return nil
	}
	return &GraphOverlay{VisitedNodes: path, CurrentNode: path[len(path)-1]}
}

// GenerateMermaid produces a Mermaid flowchart for the graph.
// Shapes:
// - Entry: ((Circle))
// - Branching node: {Rhombus}
// - Default: [Rectangle]
// - End: ([Stadium])
// Unconditional edges are solid, routed edges dotted. Overlay styles are
// applied when provided.
func GenerateMermaid(g *domain.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	usesEnd := false
	for _, node := range g.Ordered() {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case node.ID == g.Entry:
			opener, closer = "((", "))"
		case node.IsBranch():
			opener, closer = "{", "}"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, node.ID, closer)

		arrow := "-->"
		if node.IsBranch() {
			arrow = "-.->"
		}
		for _, target := range node.Edges() {
			if target == domain.End {
				usesEnd = true
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", safeID, arrow, sanitizeMermaidID(target))
		}
	}
	if usesEnd {
		fmt.Fprintf(&sb, "    %s([\"end\"])\n", sanitizeMermaidID(domain.End))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on light fills in both themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id domain.NodeID) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(string(id))
}
