package services

import (
	"errors"
	"time"

	"fleet-backend/algorithms"
	"fleet-backend/models"
)

// ControllerConfig - 로봇 제어 루프 설정
type ControllerConfig struct {
	RetryBudget  int               // 강제 해제 후 재계획 허용 횟수 (기본 3)
	BlockedAfter int               // WAITING -> BLOCKED 전환 틱 수 (기본 8)
	EdgeMode     models.AccessMode // 간선 예약 모드 (기본 exclusive)
	BatteryDrain float64           // 이동 틱당 배터리 소모 (%)
	ChargeRate   float64           // 충전 노드에서 틱당 충전량 (%)
}

// DefaultControllerConfig - 기본 설정
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		RetryBudget:  3,
		BlockedAfter: 8,
		EdgeMode:     models.ModeExclusive,
		BatteryDrain: 0.5,
		ChargeRate:   2.0,
	}
}

// TrafficController - 로봇 하나의 제어 루프
//
// 틱마다 다음 예약을 요청하고, 로봇을 전진시키고, 충돌(교착, 정체)을
// 감지해 해소한다. 자신의 Robot 레코드와 ResourceManager의 예약
// 테이블만 변경하며, 다른 로봇의 상태는 절대 직접 건드리지 않는다.
// 로봇 간 상호작용은 전부 예약 승인/거부/강제 해제를 통해서만 흐른다.
type TrafficController struct {
	robot     *models.Robot
	graph     *models.Graph
	planner   *PathPlanner
	resources *ResourceManager
	config    ControllerConfig

	// blockedRes - 직전 강제 해제의 충돌 자원 (다음 재계획에서 회피)
	blockedRes *models.ResourceRef

	onEvent func(event models.TrafficEvent)
}

// NewTrafficController - 제어 루프 생성
func NewTrafficController(robot *models.Robot, graph *models.Graph, planner *PathPlanner,
	resources *ResourceManager, config ControllerConfig, onEvent func(models.TrafficEvent)) *TrafficController {
	if config.RetryBudget <= 0 {
		config.RetryBudget = 3
	}
	if config.BlockedAfter <= 0 {
		config.BlockedAfter = 8
	}
	if config.EdgeMode == "" {
		config.EdgeMode = models.ModeExclusive
	}
	return &TrafficController{
		robot:     robot,
		graph:     graph,
		planner:   planner,
		resources: resources,
		config:    config,
		onEvent:   onEvent,
	}
}

// Step - 틱 하나 처리
func (tc *TrafficController) Step(tick int64) {
	r := tc.robot

	// 교착 해소에 의한 강제 해제 확인
	if ref, ok := tc.resources.ConsumeForcedRelease(r.ID); ok {
		tc.handleForcedRelease(tick, ref)
	}

	switch r.Status {
	case models.StatusIdle, models.StatusArrived:
		tc.handleCharging()
	case models.StatusPlanning:
		tc.stepPlanning(tick)
	case models.StatusMoving, models.StatusWaiting, models.StatusBlocked:
		tc.stepMoving(tick)
	case models.StatusFailed:
		// 말기 상태, 다음 목표 배정까지 아무것도 하지 않음
	}
}

// handleForcedRelease - 강제 해제 후 재계획 준비
//
// 예약은 ResourceManager가 이미 회수했다. 차선 진입 중이었다면
// 출발 노드로 되돌린다 (홉이 완료되지 않았으므로 롤백이 아니다).
func (tc *TrafficController) handleForcedRelease(tick int64, ref models.ResourceRef) {
	r := tc.robot
	r.HeldNode = ""
	r.HeldEdge = ""
	if r.OnEdge {
		r.OnEdge = false
		r.Progress = 0
	}

	r.RetryCount++
	if r.RetryCount > tc.config.RetryBudget {
		tc.fail(tick, "retry budget exhausted after forced release")
		return
	}

	tc.blockedRes = &ref
	r.Status = models.StatusPlanning
	r.WaitTicks = 0
}

// stepPlanning - 경로 계획
//
// 강제 해제 직후라면 충돌 자원을 회피하는 경로를 먼저 시도하고,
// 회피 경로가 없으면 기존 경로 그대로 백오프 재시도한다.
func (tc *TrafficController) stepPlanning(tick int64) {
	r := tc.robot

	if r.Goal == "" {
		r.Status = models.StatusIdle
		return
	}
	if r.CurrentNode == r.Goal {
		tc.arrive(tick)
		return
	}

	var avoid *algorithms.Avoid
	rerouting := tc.blockedRes != nil
	if rerouting {
		avoid = AvoidResource(*tc.blockedRes)
		tc.blockedRes = nil
	}

	route, err := tc.planner.Plan(r.CurrentNode, r.Goal, avoid)
	if err != nil && rerouting {
		// 회피 경로 없음: 전체 그래프에서 다시 계획 (백오프 재시도)
		route, err = tc.planner.Plan(r.CurrentNode, r.Goal, nil)
		rerouting = false
	}
	if err != nil {
		if errors.Is(err, models.ErrNoPath) {
			tc.fail(tick, "no path to goal")
			return
		}
		tc.fail(tick, err.Error())
		return
	}

	r.Route = route
	r.Status = models.StatusMoving
	r.WaitTicks = 0
	if rerouting {
		tc.emit(tick, models.EventRerouted, "", "avoiding conflicting resource")
	}
}

// stepMoving - 이동 처리
//
// 노드에 있을 때: 다음 홉의 간선을 요청하고, 승인되면 현재 노드
// 예약을 풀고 차선에 진입한다. 차선 위에서: 진행률을 올리고, 끝에
// 닿으면 목적지 노드를 배타 요청한다. 승인될 때까지 차선 끝에서
// 대기하고, 승인되면 홉을 완료하며 간선 예약을 푼다.
func (tc *TrafficController) stepMoving(tick int64) {
	r := tc.robot

	if !r.OnEdge {
		// 목표가 바뀌었으면 재계획
		if r.RouteGoal() != r.Goal {
			tc.resources.Dequeue(r.ID)
			r.Status = models.StatusPlanning
			return
		}
		if r.CurrentNode == r.Goal {
			tc.arrive(tick)
			return
		}

		next := r.NextNode()
		if next == "" {
			r.Status = models.StatusPlanning
			return
		}
		decision, err := tc.resources.RequestEdge(r.ID, r.CurrentNode, next, tc.config.EdgeMode)
		if err != nil {
			tc.fail(tick, err.Error())
			return
		}
		if decision != models.DecisionGranted {
			tc.wait(tick, models.EdgeRef(r.CurrentNode, next))
			return
		}

		// 차선 진입: 현재 노드 예약 해제
		tc.resources.Release(r.ID, models.NodeRef(r.CurrentNode))
		r.HeldNode = ""
		r.HeldEdge = models.EdgeKey(r.CurrentNode, next)
		r.OnEdge = true
		r.Progress = 0
		r.Status = models.StatusMoving
		r.WaitTicks = 0
	}

	// 차선 주행
	r.Progress += r.Speed
	if r.Progress > 1.0 {
		r.Progress = 1.0
	}
	r.Battery -= tc.config.BatteryDrain
	if r.Battery < 0 {
		r.Battery = 0
	}

	if r.Progress < 1.0 {
		return
	}

	// 차선 끝 도달: 목적지 노드 배타 예약 요청
	next := r.NextNode()
	decision, err := tc.resources.RequestNode(r.ID, next, models.ModeExclusive)
	if err != nil {
		tc.fail(tick, err.Error())
		return
	}
	if decision != models.DecisionGranted {
		tc.wait(tick, models.NodeRef(next))
		return
	}

	// 홉 완료: 간선 예약 해제, 소비한 홉 제거
	tc.resources.Release(r.ID, models.EdgeRef(r.CurrentNode, next))
	r.HeldEdge = ""
	r.HeldNode = next
	r.CurrentNode = next
	r.Route = r.Route[1:]
	r.OnEdge = false
	r.Progress = 0
	r.Status = models.StatusMoving
	r.WaitTicks = 0

	if r.CurrentNode == r.Goal {
		tc.arrive(tick)
	} else if r.RouteGoal() != r.Goal {
		// 주행 중 목표가 바뀐 경우
		r.Status = models.StatusPlanning
	}
}

// wait - 대기 처리
//
// 대기가 길어지면 BLOCKED로 전환하고, 노드에 서 있는 경우에는
// 대기 중인 간선을 회피하는 대체 경로를 찾아본다. 차선 위에서는
// 이미 진입했으므로 재계획할 수 없다.
func (tc *TrafficController) wait(tick int64, ref models.ResourceRef) {
	r := tc.robot
	r.WaitTicks++

	if r.WaitTicks < tc.config.BlockedAfter {
		r.Status = models.StatusWaiting
		return
	}
	r.Status = models.StatusBlocked

	if r.OnEdge {
		return
	}
	route, err := tc.planner.Plan(r.CurrentNode, r.Goal, AvoidResource(ref))
	if err != nil {
		return // 대체 경로 없음, 계속 대기
	}
	tc.resources.Dequeue(r.ID)
	r.Route = route
	r.Status = models.StatusMoving
	r.WaitTicks = 0
	tc.emit(tick, models.EventRerouted, ref.Key(), "detour around congestion")
}

// arrive - 목적지 도착 처리 (노드 예약은 계속 보유)
func (tc *TrafficController) arrive(tick int64) {
	r := tc.robot
	r.Status = models.StatusArrived
	r.Route = []string{r.CurrentNode}
	r.WaitTicks = 0
	r.RetryCount = 0
	tc.emit(tick, models.EventArrived, "node:"+r.CurrentNode, "")
}

// fail - 복구 불가 실패 처리
//
// 대기열에서는 빠지되, 서 있는 자원의 예약은 유지한다
// (물리적으로 그 자리를 점유하고 있으므로).
func (tc *TrafficController) fail(tick int64, detail string) {
	r := tc.robot
	tc.resources.Dequeue(r.ID)
	if r.OnEdge && r.HeldNode != "" {
		tc.resources.Release(r.ID, models.NodeRef(r.HeldNode))
		r.HeldNode = ""
	}
	if !r.OnEdge && r.HeldEdge != "" {
		tc.resources.Release(r.ID, models.ResourceRef{Kind: models.ResourceEdge, ID: r.HeldEdge})
		r.HeldEdge = ""
	}
	r.Route = nil
	r.Status = models.StatusFailed
	tc.emit(tick, models.EventFailed, "", detail)
}

// handleCharging - 충전 노드에 서 있으면 배터리 충전
func (tc *TrafficController) handleCharging() {
	r := tc.robot
	node, err := tc.graph.Node(r.CurrentNode)
	if err != nil || !node.IsCharger {
		return
	}
	if r.Battery < 100.0 {
		r.Battery += tc.config.ChargeRate
		if r.Battery > 100.0 {
			r.Battery = 100.0
		}
	}
}

// emit - 교통 이벤트 발행
func (tc *TrafficController) emit(tick int64, eventType, resource, detail string) {
	if tc.onEvent == nil {
		return
	}
	tc.onEvent(models.TrafficEvent{
		Tick:      tick,
		EventType: eventType,
		RobotID:   tc.robot.ID,
		Resource:  resource,
		Detail:    detail,
		Timestamp: time.Now(),
	})
}
