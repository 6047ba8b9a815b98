package models

import (
	"fmt"
	"time"
)

// ========================================
// 로봇 상태 상수
// ========================================
const (
	StatusIdle     = "idle"     // 대기 중 (목표 없음)
	StatusPlanning = "planning" // 경로 계획 중
	StatusMoving   = "moving"   // 이동 중
	StatusWaiting  = "waiting"  // 예약 대기 중
	StatusBlocked  = "blocked"  // 장시간 대기 (정체)
	StatusArrived  = "arrived"  // 목적지 도착
	StatusFailed   = "failed"   // 복구 불가 실패
)

// RobotStatus - 로봇 상태 타입
type RobotStatus string

// ========================================
// 로봇
// 소유권은 FleetManager에 있고, 변경은 해당 로봇의
// TrafficController 루프에서만 일어난다.
// ========================================
type Robot struct {
	ID        int         `json:"id"`
	Name      string      `json:"name"`
	Status    RobotStatus `json:"status"`
	Color     string      `json:"color"` // 시각화용 색상 (#RRGGBB)
	CreatedAt time.Time   `json:"created_at"`

	// 위치 정보
	CurrentNode string  `json:"current_node"` // 마지막으로 도착한 노드
	OnEdge      bool    `json:"on_edge"`      // 차선 주행 중 여부
	Progress    float64 `json:"progress"`     // 차선 진행률 (0.0 ~ 1.0)
	Speed       float64 `json:"speed"`        // 틱당 진행률 (기본 1.0 = 틱당 한 홉)

	// 경로 정보
	Goal  string   `json:"goal"`  // 목표 노드 (없으면 빈 문자열)
	Route []string `json:"route"` // 남은 경로 (Route[0] == CurrentNode)

	// 보유 예약 (노드 1개 + 간선 1개까지)
	HeldNode string `json:"held_node"` // 보유 중인 노드 예약 (노드 ID)
	HeldEdge string `json:"held_edge"` // 보유 중인 간선 예약 (간선 키)

	// 장애 복구
	RetryCount int `json:"retry_count"` // 강제 해제 후 재계획 횟수
	WaitTicks  int `json:"wait_ticks"`  // 연속 대기 틱 수

	// 배터리 (관측용, 조정 로직과 무관)
	Battery float64 `json:"battery"` // 0 ~ 100%
}

// NewRobot - 로봇 생성
func NewRobot(id int, startNode string) *Robot {
	return &Robot{
		ID:          id,
		Name:        fmt.Sprintf("robot-%d", id),
		Status:      StatusIdle,
		Color:       GenerateColor(id),
		CreatedAt:   time.Now(),
		CurrentNode: startNode,
		Speed:       1.0,
		Battery:     100.0,
	}
}

// NextNode - 다음 홉의 목적지 노드 (없으면 빈 문자열)
func (r *Robot) NextNode() string {
	if len(r.Route) < 2 {
		return ""
	}
	return r.Route[1]
}

// RouteGoal - 현재 경로의 최종 노드 (없으면 빈 문자열)
func (r *Robot) RouteGoal() string {
	if len(r.Route) == 0 {
		return ""
	}
	return r.Route[len(r.Route)-1]
}

// Clone - 외부 조회용 복사본
func (r *Robot) Clone() *Robot {
	copied := *r
	copied.Route = append([]string(nil), r.Route...)
	return &copied
}

// GenerateColor - 로봇 ID 기반 고정 색상 생성
func GenerateColor(id int) string {
	return fmt.Sprintf("#%02X%02X%02X", (id*50)%256, (id*100)%256, (id*150)%256)
}
