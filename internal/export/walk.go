package export

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Conversation-Search/pkg/errors"
)

// VisitFunc is called for every reachable node in traversal order. Returning
// an error stops the walk.
type VisitFunc func(id string, node MappingNode) error

// Walk traverses the tree depth-first, starting at the root's children and
// following each children list in array order. Ids that are referenced but
// absent from the mapping are skipped. A node that reappears on its own
// ancestor path fails the walk with ErrCycleDetected.
func Walk(m Mapping, visit VisitFunc) error {
	root, ok := m[RootID]
	if !ok {
		return nil
	}
	onPath := map[string]struct{}{RootID: {}}
	return walkChildren(m, root.Children, onPath, visit)
}

func walkChildren(m Mapping, children []string, onPath map[string]struct{}, visit VisitFunc) error {
	for _, id := range children {
		node, ok := m[id]
		if !ok {
			continue
		}
		if _, seen := onPath[id]; seen {
			return fmt.Errorf("node %q: %w", id, apperrors.ErrCycleDetected)
		}
		if err := visit(id, node); err != nil {
			return err
		}
		if len(node.Children) == 0 {
			continue
		}
		onPath[id] = struct{}{}
		err := walkChildren(m, node.Children, onPath, visit)
		delete(onPath, id)
		if err != nil {
			return err
		}
	}
	return nil
}

// Extract flattens every fragment of every reachable message into one
// whitespace-separated blob, in traversal order.
func Extract(m Mapping) (string, error) {
	var sb strings.Builder
	wrote := false
	err := Walk(m, func(_ string, node MappingNode) error {
		if node.Message == nil {
			return nil
		}
		for _, frag := range node.Message.Fragments {
			if wrote {
				sb.WriteByte(' ')
			}
			sb.WriteString(frag.Content)
			wrote = true
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
