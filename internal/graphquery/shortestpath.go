package graphquery

import (
	"context"

	"github.com/reconkg/engine/internal/graphmodel"
	"github.com/reconkg/engine/internal/graphstore"
)

// Path is the result of ShortestPath: the ordered nodes and edges along the
// first path found, plus its edge-count length (spec §4.3).
type Path struct {
	Nodes  []*graphmodel.Node
	Edges  []*graphmodel.Edge
	Length int
}

// ShortestPath runs an unweighted BFS from sourceId to targetId and returns
// the first complete path found. The same-node case returns a single-node,
// zero-edge, zero-length path. A disconnected pair returns (nil, nil) with
// no error (spec §4.3's "disconnected returns undefined").
func ShortestPath(ctx context.Context, store *graphstore.Store, sourceID, targetID string) (*Path, error) {
	source, err := store.FindByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if sourceID == targetID {
		return &Path{Nodes: []*graphmodel.Node{source}, Edges: nil, Length: 0}, nil
	}
	if _, err := store.FindByID(ctx, targetID); err != nil {
		return nil, err
	}

	type frontierItem struct {
		nodeID    string
		nodePath  []string
		edgePath  []*graphmodel.Edge
	}

	visited := map[string]bool{sourceID: true}
	frontier := []frontierItem{{nodeID: sourceID, nodePath: []string{sourceID}}}

	for len(frontier) > 0 {
		var next []frontierItem
		for _, item := range frontier {
			edges, err := store.EdgesFrom(ctx, item.nodeID, "")
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				if visited[e.TargetID] {
					continue
				}
				visited[e.TargetID] = true
				nodePath := append(append([]string{}, item.nodePath...), e.TargetID)
				edgePath := append(append([]*graphmodel.Edge{}, item.edgePath...), e)

				if e.TargetID == targetID {
					nodes := make([]*graphmodel.Node, len(nodePath))
					for i, id := range nodePath {
						n, err := store.FindByID(ctx, id)
						if err != nil {
							return nil, err
						}
						nodes[i] = n
					}
					return &Path{Nodes: nodes, Edges: edgePath, Length: len(edgePath)}, nil
				}
				next = append(next, frontierItem{nodeID: e.TargetID, nodePath: nodePath, edgePath: edgePath})
			}
		}
		frontier = next
	}

	return nil, nil
}
