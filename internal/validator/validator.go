// Package validator checks input records and workflow graphs before they are used.
package validator

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aretw0/hybridqa/pkg/domain"
	playground "github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *playground.Validate
)

func instance() *playground.Validate {
	once.Do(func() {
		validate = playground.New(playground.WithRequiredStructEnabled())
	})
	return validate
}

// Struct validates v against its `validate` tags and reports violations in plain words.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs playground.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe playground.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %q validation", field, fe.Tag())
	}
}

// ValidateGraph walks the graph from its entry and reports edges to missing
// nodes and nodes that can never run.
func ValidateGraph(g *domain.Graph) error {
	if g == nil {
		return errors.New("graph is nil")
	}
	if _, ok := g.Node(g.Entry); !ok {
		return fmt.Errorf("entry node '%s' not found", g.Entry)
	}

	visited := map[domain.NodeID]bool{}
	queue := []domain.NodeID{g.Entry}
	var problems []string

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		n, _ := g.Node(id)
		for _, target := range n.Edges() {
			if target == domain.End {
				continue
			}
			if _, ok := g.Node(target); !ok {
				problems = append(problems, fmt.Sprintf("missing node '%s' (from '%s')", target, id))
				continue
			}
			if !visited[target] {
				queue = append(queue, target)
			}
		}
	}

	for _, id := range g.Order {
		if !visited[id] {
			problems = append(problems, fmt.Sprintf("unreachable node '%s'", id))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(problems), strings.Join(problems, "\n- "))
	}
	return nil
}

// Reachable returns the IDs reachable from the entry, in declaration order.
func Reachable(g *domain.Graph) []domain.NodeID {
	seen := map[domain.NodeID]bool{}
	var walk func(domain.NodeID)
	walk = func(id domain.NodeID) {
		if seen[id] || id == domain.End {
			return
		}
		n, ok := g.Node(id)
		if !ok {
			return
		}
		seen[id] = true
		for _, t := range n.Edges() {
			walk(t)
		}
	}
	walk(g.Entry)

	out := make([]domain.NodeID, 0, len(seen))
	for _, id := range g.Order {
		if seen[id] {
			out = append(out, id)
		}
	}
	return out
}
