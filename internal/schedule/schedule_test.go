package schedule

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefly-engineering/browserbox/internal/browser"
)

func nodes(ids ...string) []Node {
	out := make([]Node, len(ids))
	for i, id := range ids {
		out[i] = Node{ID: id}
	}
	return out
}

func TestKey(t *testing.T) {
	tests := []struct {
		id       string
		wantKey  string
		identity bool
	}{
		{"tests/login_test.py::test_login[(chrome:latest)]", "chrome:latest", true},
		{"tests/login_test.py::test_login[(firefox:120.0)]", "firefox:120.0", true},
		{"example/test.py::TestX::test_y[(edge:latest)-admin]", "edge:latest", true},
		{"tests/login_test.py::test_plain", "tests/login_test.py", false},
		{"tests/login_test.py::test_x[(safari:17)]", "tests/login_test.py", false},
		{"standalone", "standalone", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			key, id := Key(tt.id)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.identity, id != nil)
			if id != nil {
				assert.Equal(t, tt.wantKey, id.String())
			}
		})
	}
}

func TestGroupNodes_PreservesOrder(t *testing.T) {
	groups, err := GroupNodes(nodes(
		"a.py::t1[(chrome:latest)]",
		"a.py::t1[(firefox:latest)]",
		"b.py::t2[(chrome:latest)]",
		"c.py::plain",
		"a.py::t3[(chrome:latest)]",
	))
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Equal(t, "chrome:latest", groups[0].Key)
	assert.Equal(t, []Node{
		{ID: "a.py::t1[(chrome:latest)]"},
		{ID: "b.py::t2[(chrome:latest)]"},
		{ID: "a.py::t3[(chrome:latest)]"},
	}, groups[0].Nodes)
	assert.Equal(t, 3.0, groups[0].Cost)
	assert.Equal(t, &browser.Identity{Type: browser.Chrome, Version: "latest"}, groups[0].Identity)

	assert.Equal(t, "firefox:latest", groups[1].Key)
	assert.Equal(t, "c.py", groups[2].Key)
	assert.Nil(t, groups[2].Identity)
}

func TestGroupNodes_Invalid(t *testing.T) {
	_, err := GroupNodes(nodes("a", "a"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = GroupNodes([]Node{{ID: ""}})
	assert.Error(t, err)
}

func TestPartition_ByBrowser(t *testing.T) {
	var ns []Node
	for i := 0; i < 4; i++ {
		ns = append(ns, Node{ID: fmt.Sprintf("t.py::test_%d[(chrome:latest)]", i)})
	}
	for i := 0; i < 2; i++ {
		ns = append(ns, Node{ID: fmt.Sprintf("t.py::test_%d[(firefox:latest)]", i)})
	}

	plan, err := Partition(ns, 2)
	require.NoError(t, err)
	require.Len(t, plan.Assignments, 2)

	w0, w1 := plan.Assignments[0], plan.Assignments[1]
	require.Len(t, w0.Groups, 1)
	require.Len(t, w1.Groups, 1)
	assert.Equal(t, "chrome:latest", w0.Groups[0].Key)
	assert.Equal(t, 4, w0.NodeCount())
	assert.Equal(t, "firefox:latest", w1.Groups[0].Key)
	assert.Equal(t, 2, w1.NodeCount())
}

func TestPartition_EveryNodeOnce(t *testing.T) {
	var ns []Node
	for _, b := range []string{"chrome", "firefox", "edge"} {
		for _, v := range []string{"latest", "120"} {
			for i := 0; i < 3; i++ {
				ns = append(ns, Node{ID: fmt.Sprintf("t.py::test_%d[(%s:%s)]", i, b, v)})
			}
		}
	}
	ns = append(ns, nodes("u.py::a", "u.py::b", "v.py::c")...)

	for _, workers := range []int{1, 2, 3, 5, 16} {
		t.Run(fmt.Sprintf("P=%d", workers), func(t *testing.T) {
			plan, err := Partition(ns, workers)
			require.NoError(t, err)

			seen := make(map[string]int)
			groupWorker := make(map[string]int)
			for _, a := range plan.Assignments {
				for _, g := range a.Groups {
					if prev, ok := groupWorker[g.Key]; ok {
						t.Errorf("group %s on workers %d and %d", g.Key, prev, a.Worker)
					}
					groupWorker[g.Key] = a.Worker
					for _, n := range g.Nodes {
						seen[n.ID]++
					}
				}
			}
			assert.Len(t, seen, len(ns))
			for id, count := range seen {
				assert.Equal(t, 1, count, "node %s", id)
			}
		})
	}
}

func TestPartition_BalancesCost(t *testing.T) {
	ns := []Node{
		{ID: "a.py::x", Cost: 10},
		{ID: "b.py::x", Cost: 6},
		{ID: "c.py::x", Cost: 5},
		{ID: "d.py::x", Cost: 1},
	}

	plan, err := Partition(ns, 2)
	require.NoError(t, err)
	assert.Equal(t, 11.0, plan.Assignments[0].Cost)
	assert.Equal(t, 11.0, plan.Assignments[1].Cost)
}

func TestPartition_Deterministic(t *testing.T) {
	ns := nodes("a.py::1", "b.py::1", "c.py::1", "d.py::1", "e.py::1")

	first, err := Partition(ns, 3)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Partition(ns, 3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	// Equal costs fill workers in order of first appearance.
	w, ok := first.WorkerOf("a.py::1")
	assert.True(t, ok)
	assert.Equal(t, 0, w)
	w, _ = first.WorkerOf("d.py::1")
	assert.Equal(t, 0, w)
}

func TestPartition_MoreWorkersThanGroups(t *testing.T) {
	plan, err := Partition(nodes("a.py::1[(chrome:latest)]"), 4)
	require.NoError(t, err)
	assert.Len(t, plan.Assignments, 4)
	assert.Len(t, plan.Active(), 1)

	_, ok := plan.Assignment(3)
	assert.True(t, ok)
	_, ok = plan.Assignment(4)
	assert.False(t, ok)
}

func TestPartition_InvalidWorkers(t *testing.T) {
	_, err := Partition(nodes("a"), 0)
	assert.Error(t, err)
}
