package services

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"fleet-backend/models"
)

// FleetManager - 로봇 플릿 최상위 레지스트리
//
// 로봇 등록/목표 배정/취소/조회를 담당하고, 틱마다 모든 로봇의
// 제어 루프를 로봇 ID 오름차순으로 구동한다. 같은 입력이면 항상
// 같은 틱 결과가 나온다 (재현 가능성).
type FleetManager struct {
	mu sync.RWMutex

	graph     *models.Graph
	resources *ResourceManager
	planner   *PathPlanner
	events    *TrafficEventService

	robots      map[int]*models.Robot
	controllers map[int]*TrafficController
	nextID      int
	tick        int64

	config   ControllerConfig
	reroutes int64
}

// NewFleetManager - 플릿 매니저 생성
func NewFleetManager(graph *models.Graph, config ControllerConfig, events *TrafficEventService) *FleetManager {
	resources := NewResourceManager(graph)
	fm := &FleetManager{
		graph:       graph,
		resources:   resources,
		planner:     NewPathPlanner(graph, resources),
		events:      events,
		robots:      make(map[int]*models.Robot),
		controllers: make(map[int]*TrafficController),
		nextID:      1,
		config:      config,
	}
	resources.SetEventFunc(fm.publishEvent)
	return fm
}

// Resources - 예약 관리자 (조회용)
func (fm *FleetManager) Resources() *ResourceManager { return fm.resources }

// Planner - 경로 계획 서비스 (조회용)
func (fm *FleetManager) Planner() *PathPlanner { return fm.planner }

// Graph - 내비게이션 그래프 (읽기 전용)
func (fm *FleetManager) Graph() *models.Graph { return fm.graph }

// AddRobot - 로봇 투입
//
// id가 0 이하이면 자동 배정한다. 시작 노드의 배타 예약을 즉시
// 요청하며, 점유 중이면 투입에 실패한다.
func (fm *FleetManager) AddRobot(id int, startNode string) (*models.Robot, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if !fm.graph.HasNode(startNode) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownNode, startNode)
	}
	if id <= 0 {
		id = fm.nextID
	}
	if _, exists := fm.robots[id]; exists {
		return nil, fmt.Errorf("%w: %d", models.ErrDuplicateRobot, id)
	}

	decision, err := fm.resources.RequestNode(id, startNode, models.ModeExclusive)
	if err != nil {
		return nil, err
	}
	if decision != models.DecisionGranted {
		fm.resources.Dequeue(id)
		return nil, fmt.Errorf("%w: %s", models.ErrNodeOccupied, startNode)
	}

	robot := models.NewRobot(id, startNode)
	robot.HeldNode = startNode
	fm.robots[id] = robot
	fm.controllers[id] = NewTrafficController(robot, fm.graph, fm.planner, fm.resources,
		fm.config, fm.publishEvent)
	if id >= fm.nextID {
		fm.nextID = id + 1
	}

	fm.publishEvent(models.TrafficEvent{
		Tick: fm.tick, EventType: models.EventSpawned, RobotID: id,
		Resource: "node:" + startNode,
	})
	log.Printf("✅ 로봇 투입: %d (시작 노드: %s)", id, startNode)
	return robot.Clone(), nil
}

// AssignGoal - 목표 배정
//
// 노드에 서 있는 로봇은 즉시 PLANNING으로 전환한다. 차선 주행 중인
// 로봇은 현재 홉을 마친 뒤 제어 루프가 새 목표로 재계획한다.
func (fm *FleetManager) AssignGoal(robotID int, goal string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	robot, ok := fm.robots[robotID]
	if !ok {
		return fmt.Errorf("%w: %d", models.ErrUnknownRobot, robotID)
	}
	if !fm.graph.HasNode(goal) {
		return fmt.Errorf("%w: %s", models.ErrUnknownNode, goal)
	}

	// 차선 중간에서 실패한 로봇은 출발 노드로 복귀시킨 뒤 되살린다
	if robot.Status == models.StatusFailed && robot.OnEdge {
		if robot.HeldEdge != "" {
			fm.resources.Release(robotID, models.ResourceRef{Kind: models.ResourceEdge, ID: robot.HeldEdge})
			robot.HeldEdge = ""
		}
		robot.OnEdge = false
		robot.Progress = 0
	}

	robot.Goal = goal
	robot.RetryCount = 0
	robot.WaitTicks = 0
	if !robot.OnEdge {
		fm.resources.Dequeue(robotID)
		robot.Status = models.StatusPlanning
	}

	fm.publishEvent(models.TrafficEvent{
		Tick: fm.tick, EventType: models.EventGoalAssigned, RobotID: robotID,
		Resource: "node:" + goal,
	})
	log.Printf("🎯 목표 배정: 로봇 %d -> %s", robotID, goal)
	return nil
}

// CancelGoal - 목표 취소
//
// 보유 예약을 즉시 해제하고 대기열에서 제거한 뒤 IDLE로 돌린다.
// 차선 주행 중이었다면 출발 노드로 되돌린다 (홉 미완료). 대기열의
// 다른 항목들은 상대 순서를 유지한다.
func (fm *FleetManager) CancelGoal(robotID int) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	robot, ok := fm.robots[robotID]
	if !ok {
		return fmt.Errorf("%w: %d", models.ErrUnknownRobot, robotID)
	}

	fm.resources.CancelRobot(robotID)
	robot.Goal = ""
	robot.Route = nil
	robot.HeldEdge = ""
	robot.HeldNode = ""
	robot.OnEdge = false
	robot.Progress = 0
	robot.RetryCount = 0
	robot.WaitTicks = 0
	robot.Status = models.StatusIdle

	// 서 있는 노드를 다시 확보 (보통은 즉시 승인된다)
	if decision, err := fm.resources.RequestNode(robotID, robot.CurrentNode, models.ModeExclusive); err == nil &&
		decision == models.DecisionGranted {
		robot.HeldNode = robot.CurrentNode
	} else {
		fm.resources.Dequeue(robotID)
	}

	fm.publishEvent(models.TrafficEvent{
		Tick: fm.tick, EventType: models.EventGoalCancelled, RobotID: robotID,
	})
	log.Printf("🛑 목표 취소: 로봇 %d", robotID)
	return nil
}

// Status - 로봇 상태 스냅샷 조회
func (fm *FleetManager) Status(robotID int) (*models.Robot, error) {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	robot, ok := fm.robots[robotID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", models.ErrUnknownRobot, robotID)
	}
	return robot.Clone(), nil
}

// Tick - 시뮬레이션 한 틱 전진
//
// 모든 로봇의 제어 루프를 로봇 ID 오름차순으로 한 번씩 구동한다.
func (fm *FleetManager) Tick() models.TickStats {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	fm.tick++
	fm.resources.SetTick(fm.tick)

	for _, id := range fm.sortedRobotIDs() {
		fm.controllers[id].Step(fm.tick)
	}
	return fm.stats()
}

// CurrentTick - 현재 틱
func (fm *FleetManager) CurrentTick() int64 {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	return fm.tick
}

// Stats - 현재 플릿 통계
func (fm *FleetManager) Stats() models.TickStats {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	return fm.stats()
}

// stats - 통계 집계 (잠금 보유 상태에서 호출)
func (fm *FleetManager) stats() models.TickStats {
	stats := models.TickStats{
		Tick:              fm.tick,
		TotalRobots:       len(fm.robots),
		DeadlocksResolved: fm.resources.DeadlocksResolved(),
		Reroutes:          fm.reroutes,
	}
	for _, robot := range fm.robots {
		switch robot.Status {
		case models.StatusIdle:
			stats.Idle++
		case models.StatusPlanning:
			stats.Planning++
		case models.StatusMoving:
			stats.Moving++
		case models.StatusWaiting:
			stats.Waiting++
		case models.StatusBlocked:
			stats.Blocked++
		case models.StatusArrived:
			stats.Arrived++
		case models.StatusFailed:
			stats.Failed++
		}
	}
	return stats
}

// Snapshot - 시각화용 플릿 스냅샷 (읽기 전용)
func (fm *FleetManager) Snapshot() models.FleetSnapshot {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	snapshot := models.FleetSnapshot{
		Tick:  fm.tick,
		Stats: fm.stats(),
	}

	for _, id := range fm.sortedRobotIDs() {
		robot := fm.robots[id]
		rs := models.RobotSnapshot{
			ID:          robot.ID,
			Name:        robot.Name,
			Status:      robot.Status,
			Color:       robot.Color,
			CurrentNode: robot.CurrentNode,
			OnEdge:      robot.OnEdge,
			Progress:    robot.Progress,
			Position:    fm.interpolate(robot),
			Goal:        robot.Goal,
			Route:       append([]string(nil), robot.Route...),
			Battery:     robot.Battery,
			Held:        fm.resources.HeldReservations(robot.ID),
		}
		if robot.OnEdge {
			rs.EdgeFrom = robot.CurrentNode
			rs.EdgeTo = robot.NextNode()
		}
		snapshot.Robots = append(snapshot.Robots, rs)
	}

	for _, nodeID := range fm.graph.NodeIDs() {
		node := fm.graph.Nodes[nodeID]
		ref := models.NodeRef(nodeID)
		snapshot.Nodes = append(snapshot.Nodes, models.NodeOccupancy{
			NodeID:    nodeID,
			Capacity:  node.Capacity,
			Occupants: fm.resources.Occupancy(ref),
			Queued:    fm.resources.Queue(ref),
		})
	}
	for _, edgeKey := range fm.graph.EdgeKeys() {
		edge := fm.graph.Edges[edgeKey]
		ref := models.ResourceRef{Kind: models.ResourceEdge, ID: edgeKey}
		snapshot.Edges = append(snapshot.Edges, models.EdgeOccupancy{
			EdgeKey:   edgeKey,
			Capacity:  edge.Capacity,
			Occupants: fm.resources.Occupancy(ref),
			Queued:    fm.resources.Queue(ref),
		})
	}
	return snapshot
}

// interpolate - 부드러운 렌더링을 위한 보간 좌표
func (fm *FleetManager) interpolate(robot *models.Robot) models.Position {
	current, err := fm.graph.Node(robot.CurrentNode)
	if err != nil {
		return models.Position{}
	}
	if !robot.OnEdge || robot.NextNode() == "" {
		return current.Position
	}
	next, err := fm.graph.Node(robot.NextNode())
	if err != nil {
		return current.Position
	}
	return models.Position{
		X: current.Position.X + (next.Position.X-current.Position.X)*robot.Progress,
		Y: current.Position.Y + (next.Position.Y-current.Position.Y)*robot.Progress,
	}
}

// sortedRobotIDs - 로봇 ID 오름차순 (잠금 보유 상태에서 호출)
func (fm *FleetManager) sortedRobotIDs() []int {
	ids := make([]int, 0, len(fm.robots))
	for id := range fm.robots {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// publishEvent - 교통 이벤트 발행 (재계획 카운트 집계 포함)
func (fm *FleetManager) publishEvent(event models.TrafficEvent) {
	if event.EventType == models.EventRerouted {
		fm.reroutes++
	}
	if fm.events != nil {
		fm.events.Publish(event)
	}
}
