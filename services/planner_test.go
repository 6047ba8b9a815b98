package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-backend/models"
)

// 비용이 같은 두 경로를 가진 다이아몬드 그래프
func testDiamondGraph(t *testing.T) *models.Graph {
	t.Helper()
	g := models.NewGraph("test")
	require.NoError(t, g.AddNode(&models.Node{ID: "A", Position: models.Position{X: 0, Y: 0}}))
	require.NoError(t, g.AddNode(&models.Node{ID: "B", Position: models.Position{X: 1, Y: 1}}))
	require.NoError(t, g.AddNode(&models.Node{ID: "C", Position: models.Position{X: 1, Y: -1}}))
	require.NoError(t, g.AddNode(&models.Node{ID: "D", Position: models.Position{X: 2, Y: 0}}))
	for _, pair := range [][2]string{{"A", "B"}, {"A", "C"}, {"B", "D"}, {"C", "D"}} {
		require.NoError(t, g.AddEdge(&models.Edge{From: pair[0], To: pair[1]}))
	}
	return g
}

func TestPlannerAvoidsCongestedEdge(t *testing.T) {
	g := testDiamondGraph(t)
	rm := NewResourceManager(g)
	planner := NewPathPlanner(g, rm)

	// 빈 그래프에서는 타이브레이크로 B 경유
	route, err := planner.Plan("A", "D", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "D"}, route)

	// A->B 간선이 점유되면 혼잡 가중치 때문에 C 경유로 돌아간다
	decision, err := rm.RequestEdge(3, "A", "B", models.ModeExclusive)
	require.NoError(t, err)
	require.Equal(t, models.DecisionGranted, decision)

	route, err = planner.Plan("A", "D", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "D"}, route)
}

func TestPlannerAvoidSet(t *testing.T) {
	g := testDiamondGraph(t)
	planner := NewPathPlanner(g, NewResourceManager(g))

	route, err := planner.Plan("A", "D", AvoidEdge("A", "B"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "D"}, route)

	route, err = planner.Plan("A", "D", AvoidResource(models.NodeRef("B")))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "D"}, route)

	// 양쪽 다 막으면 경로 없음
	avoid := AvoidResource(models.NodeRef("B"))
	avoid.Nodes["C"] = true
	_, err = planner.Plan("A", "D", avoid)
	require.ErrorIs(t, err, models.ErrNoPath)
}

func TestPlanWithCost(t *testing.T) {
	g := testDiamondGraph(t)
	planner := NewPathPlanner(g, NewResourceManager(g))

	route, cost, err := planner.PlanWithCost("A", "D")
	require.NoError(t, err)
	assert.Len(t, route, 3)
	assert.InDelta(t, 2.8284271, cost, 1e-6) // 2 * sqrt(2)
}
