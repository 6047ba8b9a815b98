package services

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"fleet-backend/models"
)

// queueEntry - 자원별 FIFO 대기열 항목
type queueEntry struct {
	robotID int
	mode    models.AccessMode
}

// ResourceManager - 그래프 자원(노드/간선) 예약 관리자
//
// 공유 자원에 대한 유일한 상호 배제 지점이다. 모든 요청/해제는
// 이 구조체를 거치며, 용량 불변식은 여기 한 곳에서만 검사한다.
// 점유 상태를 노드/간선 객체에 분산시키지 않는다.
type ResourceManager struct {
	mu    sync.Mutex
	graph *models.Graph
	tick  int64

	occupants    map[string]map[int]models.AccessMode     // 자원 키 -> 로봇 ID -> 모드
	reservations map[int]map[string]*models.Reservation   // 로봇 ID -> 자원 키 -> 예약
	queues       map[string][]queueEntry                  // 자원 키 -> FIFO 대기열
	waitingOn    map[int]string                           // 로봇 ID -> 대기 중인 자원 키 (wait-for 그래프)
	forced       map[int]models.ResourceRef               // 강제 해제된 로봇 -> 충돌 자원

	deadlocksResolved int64

	// onEvent - 교통 이벤트 콜백 (nil 허용)
	onEvent func(event models.TrafficEvent)
}

// NewResourceManager - 예약 관리자 생성
func NewResourceManager(graph *models.Graph) *ResourceManager {
	return &ResourceManager{
		graph:        graph,
		occupants:    make(map[string]map[int]models.AccessMode),
		reservations: make(map[int]map[string]*models.Reservation),
		queues:       make(map[string][]queueEntry),
		waitingOn:    make(map[int]string),
		forced:       make(map[int]models.ResourceRef),
	}
}

// SetEventFunc - 교통 이벤트 콜백 설정
func (rm *ResourceManager) SetEventFunc(fn func(event models.TrafficEvent)) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.onEvent = fn
}

// SetTick - 현재 시뮬레이션 틱 설정 (FleetManager가 틱 시작 시 호출)
func (rm *ResourceManager) SetTick(tick int64) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.tick = tick
}

// RequestNode - 노드 예약 요청
func (rm *ResourceManager) RequestNode(robotID int, nodeID string, mode models.AccessMode) (models.Decision, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	node, err := rm.graph.Node(nodeID)
	if err != nil {
		return models.DecisionDenied, err
	}
	return rm.request(robotID, models.NodeRef(nodeID), node.Capacity, mode, nil), nil
}

// RequestEdge - 간선 예약 요청
//
// 양방향 차선은 반대 방향 점유를 별도로 추적하되, 반대 방향에
// 점유가 있으면 승인하지 않는다 (정면 충돌 정책).
func (rm *ResourceManager) RequestEdge(robotID int, from, to string, mode models.AccessMode) (models.Decision, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	edge, err := rm.graph.EdgeBetween(from, to)
	if err != nil {
		return models.DecisionDenied, err
	}

	var conflicts []string
	if edge.Bidirectional {
		if _, err := rm.graph.EdgeBetween(to, from); err == nil {
			conflicts = append(conflicts, models.EdgeRef(to, from).Key())
		}
	}
	return rm.request(robotID, models.EdgeRef(from, to), edge.Capacity, mode, conflicts), nil
}

// request - 예약 요청 공통 처리 (rm.mu 보유 상태에서 호출)
func (rm *ResourceManager) request(robotID int, ref models.ResourceRef, capacity int, mode models.AccessMode, conflicts []string) models.Decision {
	key := ref.Key()

	// 이미 보유 중이면 재요청은 항상 승인 (멱등)
	if _, held := rm.reservations[robotID][key]; held {
		return models.DecisionGranted
	}

	// FIFO 보장: 대기열이 비어있거나 자신이 선두일 때만 승인 가능
	queue := rm.queues[key]
	headOK := len(queue) == 0 || queue[0].robotID == robotID

	if headOK && rm.available(key, capacity, mode, conflicts) {
		if len(queue) > 0 && queue[0].robotID == robotID {
			rm.queues[key] = queue[1:]
			delete(rm.waitingOn, robotID)
		}
		rm.admit(robotID, ref, capacity, mode)
		return models.DecisionGranted
	}

	// 대기열 등록 (중복 방지, 삽입 순서 = 요청 순서)
	found := false
	for _, entry := range rm.queues[key] {
		if entry.robotID == robotID {
			found = true
			break
		}
	}
	if !found {
		rm.queues[key] = append(rm.queues[key], queueEntry{robotID: robotID, mode: mode})
		rm.emit(models.EventQueued, robotID, key, "")
	}
	rm.waitingOn[robotID] = key

	// 새 대기 발생 시마다 wait-for 그래프에서 사이클 검사
	if cycle := rm.findCycleFrom(robotID); len(cycle) > 0 {
		rm.resolveDeadlock(cycle)
	}
	return models.DecisionQueued
}

// available - 자원 승인 가능 여부 (rm.mu 보유 상태에서 호출)
func (rm *ResourceManager) available(key string, capacity int, mode models.AccessMode, conflicts []string) bool {
	for _, conflictKey := range conflicts {
		if len(rm.occupants[conflictKey]) > 0 {
			return false
		}
	}

	occ := rm.occupants[key]
	if mode == models.ModeExclusive {
		return len(occ) == 0
	}

	// shared: 배타 점유자가 없고 용량 미만일 때
	for _, heldMode := range occ {
		if heldMode == models.ModeExclusive {
			return false
		}
	}
	return len(occ) < capacity
}

// admit - 점유 등록 + 용량 불변식 검사 (rm.mu 보유 상태에서 호출)
//
// 용량 초과 진입은 복구 가능한 상황이 아니라 버그다.
// 조용히 초과 수용하는 대신 즉시 패닉한다.
func (rm *ResourceManager) admit(robotID int, ref models.ResourceRef, capacity int, mode models.AccessMode) {
	key := ref.Key()
	if rm.occupants[key] == nil {
		rm.occupants[key] = make(map[int]models.AccessMode)
	}
	rm.occupants[key][robotID] = mode

	if len(rm.occupants[key]) > capacity {
		panic(fmt.Sprintf("capacity invariant violated: %s occupants=%d capacity=%d",
			key, len(rm.occupants[key]), capacity))
	}

	if rm.reservations[robotID] == nil {
		rm.reservations[robotID] = make(map[string]*models.Reservation)
	}
	rm.reservations[robotID][key] = models.NewReservation(robotID, ref, mode, rm.tick)
	rm.emit(models.EventGranted, robotID, key, "")
}

// Release - 예약 해제 (멱등, 미보유 자원 해제는 no-op)
func (rm *ResourceManager) Release(robotID int, ref models.ResourceRef) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.release(robotID, ref.Key())
}

// release - 해제 공통 처리 (rm.mu 보유 상태에서 호출)
func (rm *ResourceManager) release(robotID int, key string) {
	if _, held := rm.reservations[robotID][key]; !held {
		return
	}
	delete(rm.reservations[robotID], key)
	delete(rm.occupants[key], robotID)
	if len(rm.occupants[key]) == 0 {
		delete(rm.occupants, key)
	}
	rm.emit(models.EventReleased, robotID, key, "")
	// 대기열 선두는 다음 재요청 시 우선 승인된다.
}

// ReleaseAll - 로봇의 모든 예약 해제
func (rm *ResourceManager) ReleaseAll(robotID int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.releaseAll(robotID)
}

func (rm *ResourceManager) releaseAll(robotID int) {
	keys := make([]string, 0, len(rm.reservations[robotID]))
	for key := range rm.reservations[robotID] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		rm.release(robotID, key)
	}
}

// Dequeue - 로봇을 모든 대기열에서 제거
//
// 나머지 대기 항목들의 상대 순서는 유지된다.
func (rm *ResourceManager) Dequeue(robotID int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.dequeue(robotID)
}

func (rm *ResourceManager) dequeue(robotID int) {
	key, waiting := rm.waitingOn[robotID]
	if !waiting {
		return
	}
	queue := rm.queues[key]
	for i, entry := range queue {
		if entry.robotID == robotID {
			rm.queues[key] = append(queue[:i:i], queue[i+1:]...)
			break
		}
	}
	if len(rm.queues[key]) == 0 {
		delete(rm.queues, key)
	}
	delete(rm.waitingOn, robotID)
}

// CancelRobot - 로봇의 예약/대기열/강제 해제 플래그 전부 정리 (목표 취소, 제거 시)
func (rm *ResourceManager) CancelRobot(robotID int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.dequeue(robotID)
	rm.releaseAll(robotID)
	delete(rm.forced, robotID)
}

// ========================================
// 교착 감지/해소
// ========================================

// findCycleFrom - wait-for 그래프 사이클 탐색 (rm.mu 보유 상태에서 호출)
//
// 로봇 A가 로봇 B의 점유 자원을 기다리면 A -> B 간선이 있는 것으로
// 보고, 요청 로봇에서 시작하는 DFS로 사이클을 찾는다.
func (rm *ResourceManager) findCycleFrom(start int) []int {
	var stack []int
	onStack := make(map[int]int) // 로봇 ID -> 스택 인덱스

	var dfs func(robotID int) []int
	dfs = func(robotID int) []int {
		if idx, ok := onStack[robotID]; ok {
			return append([]int(nil), stack[idx:]...)
		}
		key, waiting := rm.waitingOn[robotID]
		if !waiting {
			return nil
		}
		onStack[robotID] = len(stack)
		stack = append(stack, robotID)
		defer func() {
			delete(onStack, robotID)
			stack = stack[:len(stack)-1]
		}()

		for _, holder := range rm.blockers(key) {
			if holder == robotID {
				continue
			}
			if cycle := dfs(holder); len(cycle) > 0 {
				return cycle
			}
		}
		return nil
	}
	return dfs(start)
}

// blockers - 자원을 기다리는 로봇을 막는 점유자 목록 (rm.mu 보유 상태에서 호출)
//
// 자원 자체의 점유자에 더해, 양방향 차선이면 반대 방향 점유자도
// 포함한다 (반대 방향 점유가 승인을 막으므로 wait-for 간선이다).
func (rm *ResourceManager) blockers(key string) []int {
	ids := rm.sortedOccupants(key)
	ref := refFromKey(key)
	if ref.Kind == models.ResourceEdge {
		if edge, ok := rm.graph.Edges[ref.ID]; ok && edge.Bidirectional {
			reverse := models.EdgeRef(edge.To, edge.From).Key()
			ids = append(ids, rm.sortedOccupants(reverse)...)
			sort.Ints(ids)
		}
	}
	return ids
}

// resolveDeadlock - 교착 사이클 해소 (rm.mu 보유 상태에서 호출)
//
// 희생자는 사이클 내 가장 큰 ID의 로봇: 가장 최근에 투입된 로봇이
// 양보하고, 오래된 로봇이 우선권을 가진다. 희생자의 예약을 강제
// 해제하고 재계획 대상으로 표시한다. 이미 완료된 이동은 되돌리지
// 않는다.
func (rm *ResourceManager) resolveDeadlock(cycle []int) {
	victim := cycle[0]
	for _, robotID := range cycle {
		if robotID > victim {
			victim = robotID
		}
	}

	conflictKey := rm.waitingOn[victim]
	rm.dequeue(victim)
	rm.releaseAll(victim)
	rm.forced[victim] = refFromKey(conflictKey)
	rm.deadlocksResolved++

	detail := fmt.Sprintf("cycle=%v victim=%d", cycle, victim)
	rm.emit(models.EventForcedRelease, victim, conflictKey, detail)
	rm.emitDeadlock(victim, conflictKey, detail)
	log.Printf("⚠️ 교착 해소: %s", detail)
}

// ConsumeForcedRelease - 강제 해제 플래그 확인 및 제거
//
// TrafficController가 틱마다 호출한다. 플래그가 있으면 충돌 자원을
// 반환하고 플래그를 지운다.
func (rm *ResourceManager) ConsumeForcedRelease(robotID int) (models.ResourceRef, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	ref, ok := rm.forced[robotID]
	if ok {
		delete(rm.forced, robotID)
	}
	return ref, ok
}

// ========================================
// 조회
// ========================================

// Occupancy - 자원 점유 로봇 목록 (ID 오름차순)
func (rm *ResourceManager) Occupancy(ref models.ResourceRef) []int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.sortedOccupants(ref.Key())
}

// OccupantCount - 자원 점유 로봇 수
func (rm *ResourceManager) OccupantCount(ref models.ResourceRef) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.occupants[ref.Key()])
}

// Queue - 자원 대기열 (대기 순서 그대로)
func (rm *ResourceManager) Queue(ref models.ResourceRef) []int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	queue := rm.queues[ref.Key()]
	result := make([]int, 0, len(queue))
	for _, entry := range queue {
		result = append(result, entry.robotID)
	}
	return result
}

// HeldReservations - 로봇이 보유한 예약 목록 (자원 키 오름차순)
func (rm *ResourceManager) HeldReservations(robotID int) []models.Reservation {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	keys := make([]string, 0, len(rm.reservations[robotID]))
	for key := range rm.reservations[robotID] {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]models.Reservation, 0, len(keys))
	for _, key := range keys {
		result = append(result, *rm.reservations[robotID][key])
	}
	return result
}

// DeadlocksResolved - 누적 교착 해소 횟수
func (rm *ResourceManager) DeadlocksResolved() int64 {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.deadlocksResolved
}

// VerifyCapacities - 전체 자원 용량 불변식 검사 (테스트/디버그용)
func (rm *ResourceManager) VerifyCapacities() error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for key, occ := range rm.occupants {
		capacity := rm.capacityOf(key)
		if len(occ) > capacity {
			return fmt.Errorf("capacity invariant violated: %s occupants=%d capacity=%d",
				key, len(occ), capacity)
		}
		exclusive := 0
		for _, mode := range occ {
			if mode == models.ModeExclusive {
				exclusive++
			}
		}
		if exclusive > 0 && len(occ) > 1 {
			return fmt.Errorf("exclusive reservation shared: %s occupants=%d", key, len(occ))
		}
	}
	return nil
}

// capacityOf - 자원 키로 용량 조회 (rm.mu 보유 상태에서 호출)
func (rm *ResourceManager) capacityOf(key string) int {
	ref := refFromKey(key)
	switch ref.Kind {
	case models.ResourceNode:
		if node, err := rm.graph.Node(ref.ID); err == nil {
			return node.Capacity
		}
	case models.ResourceEdge:
		if edge, ok := rm.graph.Edges[ref.ID]; ok {
			return edge.Capacity
		}
	}
	return 1
}

// sortedOccupants - 점유 로봇 ID 오름차순 (rm.mu 보유 상태에서 호출)
func (rm *ResourceManager) sortedOccupants(key string) []int {
	occ := rm.occupants[key]
	result := make([]int, 0, len(occ))
	for robotID := range occ {
		result = append(result, robotID)
	}
	sort.Ints(result)
	return result
}

// emit - 이벤트 콜백 호출 (rm.mu 보유 상태에서 호출)
func (rm *ResourceManager) emit(eventType string, robotID int, resource, detail string) {
	if rm.onEvent == nil {
		return
	}
	rm.onEvent(models.TrafficEvent{
		Tick:      rm.tick,
		EventType: eventType,
		RobotID:   robotID,
		Resource:  resource,
		Detail:    detail,
	})
}

func (rm *ResourceManager) emitDeadlock(victim int, resource, detail string) {
	if rm.onEvent == nil {
		return
	}
	rm.onEvent(models.TrafficEvent{
		Tick:      rm.tick,
		EventType: models.EventDeadlockResolved,
		RobotID:   victim,
		VictimID:  victim,
		Resource:  resource,
		Detail:    detail,
	})
}

// refFromKey - 자원 키를 ResourceRef로 복원
func refFromKey(key string) models.ResourceRef {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return models.ResourceRef{Kind: models.ResourceKind(key[:i]), ID: key[i+1:]}
		}
	}
	return models.ResourceRef{ID: key}
}
