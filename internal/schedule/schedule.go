package schedule

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/firefly-engineering/browserbox/internal/browser"
)

// DefaultCost is used for nodes without an explicit cost.
const DefaultCost = 1.0

// Node is one schedulable test.
type Node struct {
	ID   string  `yaml:"id" json:"id"`
	Cost float64 `yaml:"cost,omitempty" json:"cost,omitempty"`
}

func (n Node) cost() float64 {
	if n.Cost <= 0 {
		return DefaultCost
	}
	return n.Cost
}

// Group is a set of nodes that must run on the same worker.
type Group struct {
	Key string `yaml:"key" json:"key"`

	// Identity is set when the key is a browser identity tag.
	Identity *browser.Identity `yaml:"identity,omitempty" json:"identity,omitempty"`

	Nodes []Node  `yaml:"nodes" json:"nodes"`
	Cost  float64 `yaml:"cost" json:"cost"`
}

var identityTag = regexp.MustCompile(`\((` + strings.Join(browser.SupportedNames(), "|") + `):([^)\s]+)\)`)

// Key returns the group key of a node id and, when the id carries an
// identity tag, the identity.
func Key(nodeID string) (string, *browser.Identity) {
	if m := identityTag.FindStringSubmatch(nodeID); m != nil {
		id := browser.Identity{Type: browser.Type(m[1]), Version: m[2]}
		return id.String(), &id
	}
	scope, _, _ := strings.Cut(nodeID, "::")
	return scope, nil
}

// GroupNodes groups nodes by Key in order of first appearance. Node ids
// must be unique and non-empty.
func GroupNodes(nodes []Node) ([]Group, error) {
	var groups []Group
	index := make(map[string]int)
	seen := make(map[string]bool, len(nodes))

	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node with empty id")
		}
		if seen[n.ID] {
			return nil, fmt.Errorf("duplicate node id %q", n.ID)
		}
		seen[n.ID] = true

		key, id := Key(n.ID)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key, Identity: id})
		}
		groups[i].Nodes = append(groups[i].Nodes, n)
		groups[i].Cost += n.cost()
	}
	return groups, nil
}

// Assignment is the work of one worker.
type Assignment struct {
	Worker int     `yaml:"worker" json:"worker"`
	Cost   float64 `yaml:"cost" json:"cost"`
	Groups []Group `yaml:"groups" json:"groups"`
}

// NodeCount returns the number of nodes assigned.
func (a Assignment) NodeCount() int {
	n := 0
	for _, g := range a.Groups {
		n += len(g.Nodes)
	}
	return n
}

// Plan assigns every group to exactly one worker.
type Plan struct {
	Workers     int          `yaml:"workers" json:"workers"`
	Assignments []Assignment `yaml:"assignments" json:"assignments"`
}

// Partition groups nodes and assigns groups to workers, balancing cost.
func Partition(nodes []Node, workers int) (*Plan, error) {
	if workers < 1 {
		return nil, fmt.Errorf("worker count must be at least 1 (got %d)", workers)
	}
	groups, err := GroupNodes(nodes)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Workers: workers, Assignments: make([]Assignment, workers)}
	for i := range plan.Assignments {
		plan.Assignments[i].Worker = i
	}

	// Stable sort keeps first-appearance order among equal costs.
	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return groups[order[a]].Cost > groups[order[b]].Cost
	})

	for _, gi := range order {
		w := leastLoaded(plan.Assignments)
		plan.Assignments[w].Groups = append(plan.Assignments[w].Groups, groups[gi])
		plan.Assignments[w].Cost += groups[gi].Cost
	}
	return plan, nil
}

func leastLoaded(as []Assignment) int {
	best := 0
	for i := 1; i < len(as); i++ {
		if as[i].Cost < as[best].Cost {
			best = i
		}
	}
	return best
}

// Assignment returns the work for worker, if any.
func (p *Plan) Assignment(worker int) (Assignment, bool) {
	for _, a := range p.Assignments {
		if a.Worker == worker {
			return a, true
		}
	}
	return Assignment{}, false
}

// Active returns the assignments with at least one group.
func (p *Plan) Active() []Assignment {
	var out []Assignment
	for _, a := range p.Assignments {
		if len(a.Groups) > 0 {
			out = append(out, a)
		}
	}
	return out
}

// WorkerOf returns the worker a node id was assigned to.
func (p *Plan) WorkerOf(nodeID string) (int, bool) {
	for _, a := range p.Assignments {
		for _, g := range a.Groups {
			for _, n := range g.Nodes {
				if n.ID == nodeID {
					return a.Worker, true
				}
			}
		}
	}
	return 0, false
}
