package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-backend/models"
)

func newTestFleet(t *testing.T, graph *models.Graph) *FleetManager {
	t.Helper()
	return NewFleetManager(graph, DefaultControllerConfig(), nil)
}

// 방향성 간선으로만 이어진 4-사이클 그래프 A->B->C->D->A
func testCycleGraph(t *testing.T) *models.Graph {
	t.Helper()
	g := models.NewGraph("test")
	positions := map[string]models.Position{
		"A": {X: 0, Y: 0}, "B": {X: 1, Y: 0}, "C": {X: 1, Y: 1}, "D": {X: 0, Y: 1},
	}
	for _, id := range []string{"A", "B", "C", "D"} {
		require.NoError(t, g.AddNode(&models.Node{ID: id, Position: positions[id]}))
	}
	for _, pair := range [][2]string{{"A", "B"}, {"B", "C"}, {"C", "D"}, {"D", "A"}} {
		require.NoError(t, g.AddEdge(&models.Edge{From: pair[0], To: pair[1]}))
	}
	return g
}

// tickUntilSettled - 모든 로봇이 말기 상태(ARRIVED/IDLE/FAILED)가 될 때까지
// 틱을 진행한다. 매 틱 용량 불변식을 검사한다.
func tickUntilSettled(t *testing.T, fm *FleetManager, maxTicks int) int {
	t.Helper()
	for i := 1; i <= maxTicks; i++ {
		stats := fm.Tick()
		require.NoError(t, fm.Resources().VerifyCapacities(), "tick %d", i)
		if stats.Moving == 0 && stats.Waiting == 0 && stats.Blocked == 0 && stats.Planning == 0 {
			return i
		}
	}
	t.Fatalf("플릿이 %d틱 안에 안정화되지 않음: %+v", maxTicks, fm.Stats())
	return maxTicks
}

func TestAddRobot(t *testing.T) {
	fm := newTestFleet(t, testLineGraph(t))

	robot, err := fm.AddRobot(0, "A")
	require.NoError(t, err)
	assert.Equal(t, 1, robot.ID) // 자동 배정
	assert.Equal(t, "A", robot.CurrentNode)
	assert.Equal(t, models.RobotStatus(models.StatusIdle), robot.Status)

	// 시작 노드 예약을 즉시 보유한다
	assert.Equal(t, []int{1}, fm.Resources().Occupancy(models.NodeRef("A")))

	// 점유된 노드에는 투입 불가
	_, err = fm.AddRobot(0, "A")
	require.ErrorIs(t, err, models.ErrNodeOccupied)

	// ID 중복
	_, err = fm.AddRobot(1, "B")
	require.ErrorIs(t, err, models.ErrDuplicateRobot)

	// 존재하지 않는 노드
	_, err = fm.AddRobot(0, "Z")
	require.ErrorIs(t, err, models.ErrUnknownNode)
}

func TestAssignGoalErrors(t *testing.T) {
	fm := newTestFleet(t, testLineGraph(t))
	_, err := fm.AddRobot(1, "A")
	require.NoError(t, err)

	require.ErrorIs(t, fm.AssignGoal(99, "C"), models.ErrUnknownRobot)
	require.ErrorIs(t, fm.AssignGoal(1, "Z"), models.ErrUnknownNode)
	require.ErrorIs(t, fm.CancelGoal(99), models.ErrUnknownRobot)
	_, err = fm.Status(99)
	require.ErrorIs(t, err, models.ErrUnknownRobot)
}

func TestSingleRobotTravelsToGoal(t *testing.T) {
	fm := newTestFleet(t, testLineGraph(t))
	_, err := fm.AddRobot(1, "A")
	require.NoError(t, err)
	require.NoError(t, fm.AssignGoal(1, "C"))

	tickUntilSettled(t, fm, 10)

	robot, err := fm.Status(1)
	require.NoError(t, err)
	assert.Equal(t, models.RobotStatus(models.StatusArrived), robot.Status)
	assert.Equal(t, "C", robot.CurrentNode)
	// 도착 후에도 서 있는 노드 예약은 유지
	assert.Equal(t, []int{1}, fm.Resources().Occupancy(models.NodeRef("C")))
	assert.Empty(t, fm.Resources().Occupancy(models.NodeRef("A")))
}

// 양방향 차선 일직선에서 마주 보고 달리는 두 로봇.
// 교착 해소(강제 해제)로 풀려야 하며, 둘 다 실패 없이 도착해야 한다.
func TestHeadOnLineResolves(t *testing.T) {
	fm := newTestFleet(t, testLineGraph(t))
	_, err := fm.AddRobot(1, "A")
	require.NoError(t, err)
	_, err = fm.AddRobot(2, "C")
	require.NoError(t, err)
	require.NoError(t, fm.AssignGoal(1, "C"))
	require.NoError(t, fm.AssignGoal(2, "A"))

	tickUntilSettled(t, fm, 20)

	r1, _ := fm.Status(1)
	r2, _ := fm.Status(2)
	assert.Equal(t, models.RobotStatus(models.StatusArrived), r1.Status)
	assert.Equal(t, "C", r1.CurrentNode)
	assert.Equal(t, models.RobotStatus(models.StatusArrived), r2.Status)
	assert.Equal(t, "A", r2.CurrentNode)

	stats := fm.Stats()
	assert.Zero(t, stats.Failed)
	assert.GreaterOrEqual(t, stats.DeadlocksResolved, int64(1))
}

// 4-사이클 회전: 각 로봇이 다음 노드로 한 칸씩 이동.
// 차선 진입 시 현재 노드를 풀기 때문에 회전이 자연스럽게 풀린다.
func TestFourCycleRotationCompletes(t *testing.T) {
	fm := newTestFleet(t, testCycleGraph(t))
	starts := []string{"A", "B", "C", "D"}
	goals := []string{"B", "C", "D", "A"}
	for i := range starts {
		_, err := fm.AddRobot(i+1, starts[i])
		require.NoError(t, err)
	}
	for i := range goals {
		require.NoError(t, fm.AssignGoal(i+1, goals[i]))
	}

	ticks := tickUntilSettled(t, fm, 10)
	t.Logf("회전 완료까지 %d틱", ticks)

	for i := range goals {
		robot, err := fm.Status(i + 1)
		require.NoError(t, err)
		assert.Equal(t, models.RobotStatus(models.StatusArrived), robot.Status, "robot %d", i+1)
		assert.Equal(t, goals[i], robot.CurrentNode, "robot %d", i+1)
	}
	assert.Zero(t, fm.Stats().Failed)
}

// 같은 입력이면 틱별 로봇 궤적이 완전히 같아야 한다.
func TestDeterministicTrajectories(t *testing.T) {
	run := func() []string {
		fm := newTestFleet(t, testLineGraph(t))
		_, err := fm.AddRobot(1, "A")
		require.NoError(t, err)
		_, err = fm.AddRobot(2, "C")
		require.NoError(t, err)
		require.NoError(t, fm.AssignGoal(1, "C"))
		require.NoError(t, fm.AssignGoal(2, "A"))

		var trace []string
		for i := 0; i < 15; i++ {
			fm.Tick()
			for _, id := range []int{1, 2} {
				robot, err := fm.Status(id)
				require.NoError(t, err)
				trace = append(trace, fmt.Sprintf("%d:%s@%s/%v/%.1f",
					robot.ID, robot.Status, robot.CurrentNode, robot.OnEdge, robot.Progress))
			}
		}
		return trace
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
}

// 대기 중 로봇의 목표 취소는 대기열 자리를 비워야 한다.
func TestCancelGoalFreesQueueSlot(t *testing.T) {
	fm := newTestFleet(t, testLineGraph(t))
	_, err := fm.AddRobot(1, "C") // C를 점유한 채 정지
	require.NoError(t, err)
	_, err = fm.AddRobot(2, "A")
	require.NoError(t, err)
	require.NoError(t, fm.AssignGoal(2, "C"))

	// 로봇 2가 노드 C 대기열에 들어갈 때까지 진행
	for i := 0; i < 5; i++ {
		fm.Tick()
		if len(fm.Resources().Queue(models.NodeRef("C"))) > 0 {
			break
		}
	}
	require.Equal(t, []int{2}, fm.Resources().Queue(models.NodeRef("C")))

	require.NoError(t, fm.CancelGoal(2))

	assert.Empty(t, fm.Resources().Queue(models.NodeRef("C")))
	robot, _ := fm.Status(2)
	assert.Equal(t, models.RobotStatus(models.StatusIdle), robot.Status)
	assert.False(t, robot.OnEdge)
	// 서 있는 노드는 다시 확보한다
	assert.Equal(t, []int{2}, fm.Resources().Occupancy(models.NodeRef(robot.CurrentNode)))
	require.NoError(t, fm.Resources().VerifyCapacities())
}

// 목표까지 경로가 없으면 FAILED로 끝나야 한다.
func TestNoPathFails(t *testing.T) {
	g := models.NewGraph("test")
	require.NoError(t, g.AddNode(&models.Node{ID: "A", Position: models.Position{X: 0, Y: 0}}))
	require.NoError(t, g.AddNode(&models.Node{ID: "B", Position: models.Position{X: 5, Y: 0}}))
	fm := newTestFleet(t, g)

	_, err := fm.AddRobot(1, "A")
	require.NoError(t, err)
	require.NoError(t, fm.AssignGoal(1, "B"))

	fm.Tick()

	robot, _ := fm.Status(1)
	assert.Equal(t, models.RobotStatus(models.StatusFailed), robot.Status)
	// 실패해도 서 있는 노드 예약은 유지 (물리적으로 점유 중)
	assert.Equal(t, []int{1}, fm.Resources().Occupancy(models.NodeRef("A")))
}

// 주행 중 목표 변경은 현재 홉을 마친 뒤 재계획으로 이어진다.
func TestGoalChangeMidRoute(t *testing.T) {
	fm := newTestFleet(t, testLineGraph(t))
	_, err := fm.AddRobot(1, "A")
	require.NoError(t, err)
	require.NoError(t, fm.AssignGoal(1, "C"))

	fm.Tick() // planning
	fm.Tick() // A -> B 이동
	robot, _ := fm.Status(1)
	require.Equal(t, "B", robot.CurrentNode)

	require.NoError(t, fm.AssignGoal(1, "A"))
	tickUntilSettled(t, fm, 10)

	robot, _ = fm.Status(1)
	assert.Equal(t, models.RobotStatus(models.StatusArrived), robot.Status)
	assert.Equal(t, "A", robot.CurrentNode)
}

// 새 목표 배정은 ARRIVED/FAILED 로봇을 되살린다.
func TestReassignAfterArrival(t *testing.T) {
	fm := newTestFleet(t, testLineGraph(t))
	_, err := fm.AddRobot(1, "A")
	require.NoError(t, err)
	require.NoError(t, fm.AssignGoal(1, "C"))
	tickUntilSettled(t, fm, 10)

	require.NoError(t, fm.AssignGoal(1, "A"))
	tickUntilSettled(t, fm, 10)

	robot, _ := fm.Status(1)
	assert.Equal(t, models.RobotStatus(models.StatusArrived), robot.Status)
	assert.Equal(t, "A", robot.CurrentNode)
	assert.Zero(t, robot.RetryCount)
}

func TestSnapshotShape(t *testing.T) {
	fm := newTestFleet(t, testLineGraph(t))
	_, err := fm.AddRobot(1, "A")
	require.NoError(t, err)
	require.NoError(t, fm.AssignGoal(1, "C"))
	fm.Tick()

	snapshot := fm.Snapshot()
	require.Len(t, snapshot.Robots, 1)
	assert.Equal(t, 1, snapshot.Robots[0].ID)
	assert.Equal(t, models.GenerateColor(1), snapshot.Robots[0].Color)
	assert.Len(t, snapshot.Nodes, 3)
	assert.Len(t, snapshot.Edges, 4) // 양방향 차선 2개 = 방향성 간선 4개
	assert.Equal(t, snapshot.Tick, snapshot.Stats.Tick)

	// 노드 점유 현황에 시작 노드 예약이 보여야 한다
	var nodeA *models.NodeOccupancy
	for i := range snapshot.Nodes {
		if snapshot.Nodes[i].NodeID == "A" {
			nodeA = &snapshot.Nodes[i]
		}
	}
	require.NotNil(t, nodeA)
	assert.Equal(t, []int{1}, nodeA.Occupants)
}

func TestBatteryDrainsWhileMovingAndCharges(t *testing.T) {
	g := testLineGraph(t)
	g.Nodes["C"].IsCharger = true
	fm := newTestFleet(t, g)

	_, err := fm.AddRobot(1, "A")
	require.NoError(t, err)
	require.NoError(t, fm.AssignGoal(1, "C"))
	tickUntilSettled(t, fm, 10)

	robot, _ := fm.Status(1)
	require.Equal(t, models.RobotStatus(models.StatusArrived), robot.Status)
	drained := robot.Battery
	assert.Less(t, drained, 100.0)

	// 충전 노드에서 ARRIVED 상태로 대기하면 충전된다
	fm.Tick()
	robot, _ = fm.Status(1)
	assert.Greater(t, robot.Battery, drained)
}
