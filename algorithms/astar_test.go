package algorithms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-backend/models"
)

func lineGraph(t *testing.T) *models.Graph {
	t.Helper()
	g := models.NewGraph("test")
	require.NoError(t, g.AddNode(&models.Node{ID: "A", Position: models.Position{X: 0, Y: 0}}))
	require.NoError(t, g.AddNode(&models.Node{ID: "B", Position: models.Position{X: 1, Y: 0}}))
	require.NoError(t, g.AddNode(&models.Node{ID: "C", Position: models.Position{X: 2, Y: 0}}))
	require.NoError(t, g.AddEdge(&models.Edge{From: "A", To: "B"}))
	require.NoError(t, g.AddEdge(&models.Edge{From: "B", To: "C"}))
	return g
}

// 비용이 같은 두 경로를 가진 다이아몬드 그래프
func diamondGraph(t *testing.T) *models.Graph {
	t.Helper()
	g := models.NewGraph("test")
	require.NoError(t, g.AddNode(&models.Node{ID: "A", Position: models.Position{X: 0, Y: 0}}))
	require.NoError(t, g.AddNode(&models.Node{ID: "B", Position: models.Position{X: 1, Y: 1}}))
	require.NoError(t, g.AddNode(&models.Node{ID: "C", Position: models.Position{X: 1, Y: -1}}))
	require.NoError(t, g.AddNode(&models.Node{ID: "D", Position: models.Position{X: 2, Y: 0}}))
	require.NoError(t, g.AddEdge(&models.Edge{From: "A", To: "B"}))
	require.NoError(t, g.AddEdge(&models.Edge{From: "A", To: "C"}))
	require.NoError(t, g.AddEdge(&models.Edge{From: "B", To: "D"}))
	require.NoError(t, g.AddEdge(&models.Edge{From: "C", To: "D"}))
	return g
}

func TestFindPathSimpleLine(t *testing.T) {
	g := lineGraph(t)

	route, cost, err := FindPath(g, "A", "C", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, route)
	assert.InDelta(t, 2.0, cost, 1e-9)
}

func TestFindPathStartEqualsGoal(t *testing.T) {
	g := lineGraph(t)

	route, cost, err := FindPath(g, "B", "B", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, route)
	assert.Zero(t, cost)
}

func TestFindPathNoPath(t *testing.T) {
	g := models.NewGraph("test")
	require.NoError(t, g.AddNode(&models.Node{ID: "A", Position: models.Position{X: 0, Y: 0}}))
	require.NoError(t, g.AddNode(&models.Node{ID: "B", Position: models.Position{X: 1, Y: 0}}))

	_, _, err := FindPath(g, "A", "B", nil, nil)
	require.ErrorIs(t, err, models.ErrNoPath)
}

func TestFindPathUnknownNode(t *testing.T) {
	g := lineGraph(t)

	_, _, err := FindPath(g, "A", "Z", nil, nil)
	require.ErrorIs(t, err, models.ErrUnknownNode)

	_, _, err = FindPath(g, "Z", "A", nil, nil)
	require.ErrorIs(t, err, models.ErrUnknownNode)
}

func TestFindPathDirectedEdgeOnly(t *testing.T) {
	g := lineGraph(t)

	// 간선이 정방향만 있으므로 역방향 경로는 없다
	_, _, err := FindPath(g, "C", "A", nil, nil)
	require.ErrorIs(t, err, models.ErrNoPath)
}

func TestFindPathTieBreakDeterministic(t *testing.T) {
	g := diamondGraph(t)

	// A->B->D와 A->C->D는 비용/홉이 같다. 부모 ID 사전순 타이브레이크로
	// 항상 B 경유 경로가 선택되어야 한다.
	for i := 0; i < 10; i++ {
		route, _, err := FindPath(g, "A", "D", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "D"}, route)
	}
}

func TestFindPathPrefersFewerHops(t *testing.T) {
	g := models.NewGraph("test")
	require.NoError(t, g.AddNode(&models.Node{ID: "A", Position: models.Position{X: 0, Y: 0}}))
	require.NoError(t, g.AddNode(&models.Node{ID: "B", Position: models.Position{X: 1, Y: 0}}))
	require.NoError(t, g.AddNode(&models.Node{ID: "C", Position: models.Position{X: 2, Y: 0}}))
	// 직행 간선과 경유 경로의 총 비용을 같게 맞춘다
	require.NoError(t, g.AddEdge(&models.Edge{From: "A", To: "C", Weight: 2.0}))
	require.NoError(t, g.AddEdge(&models.Edge{From: "A", To: "B", Weight: 1.0}))
	require.NoError(t, g.AddEdge(&models.Edge{From: "B", To: "C", Weight: 1.0}))

	route, cost, err := FindPath(g, "A", "C", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, route)
	assert.InDelta(t, 2.0, cost, 1e-9)
}

func TestFindPathAvoidEdge(t *testing.T) {
	g := diamondGraph(t)

	avoid := &Avoid{Edges: map[string]bool{models.EdgeKey("A", "B"): true}}
	route, _, err := FindPath(g, "A", "D", nil, avoid)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "D"}, route)
}

func TestFindPathAvoidNode(t *testing.T) {
	g := diamondGraph(t)

	avoid := &Avoid{Nodes: map[string]bool{"B": true}}
	route, _, err := FindPath(g, "A", "D", nil, avoid)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "D"}, route)

	// 목표 노드 자체를 회피하면 경로 없음
	avoid = &Avoid{Nodes: map[string]bool{"D": true}}
	_, _, err = FindPath(g, "A", "D", nil, avoid)
	require.ErrorIs(t, err, models.ErrNoPath)
}

func TestFindPathCustomWeight(t *testing.T) {
	g := diamondGraph(t)

	// B 경유 간선을 비싸게 만들면 C 경유로 돌아가야 한다
	weight := func(e *models.Edge) float64 {
		if e.From == "A" && e.To == "B" {
			return 100.0
		}
		return e.Weight
	}
	route, _, err := FindPath(g, "A", "D", weight, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "D"}, route)
}
