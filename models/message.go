package models

// ========================================
// 메시지 타입 상수
// ========================================
const (
	// Server → Web (시각화 클라이언트)
	MessageTypeSnapshot     = "snapshot"      // 틱 단위 플릿 스냅샷
	MessageTypeTrafficEvent = "traffic_event" // 교통 이벤트 (승인/대기/교착 해소 등)
	MessageTypeSystemInfo   = "system_info"   // 시스템 정보
)

// ========================================
// 공통 WebSocket 메시지 형식
// ========================================
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"` // Unix timestamp (ms)
}

// ========================================
// 플릿 스냅샷 (시각화 전용 읽기 인터페이스)
// 틱마다 한 번 생성되어 브로드캐스트된다.
// ========================================
type FleetSnapshot struct {
	Tick   int64           `json:"tick"`
	Robots []RobotSnapshot `json:"robots"`
	Nodes  []NodeOccupancy `json:"nodes"`
	Edges  []EdgeOccupancy `json:"edges"`
	Stats  TickStats       `json:"stats"`
}

// RobotSnapshot - 로봇 하나의 관측 상태
type RobotSnapshot struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	Status      RobotStatus   `json:"status"`
	Color       string        `json:"color"`
	CurrentNode string        `json:"current_node"`
	OnEdge      bool          `json:"on_edge"`
	EdgeFrom    string        `json:"edge_from,omitempty"`
	EdgeTo      string        `json:"edge_to,omitempty"`
	Progress    float64       `json:"progress"`
	Position    Position      `json:"position"` // 보간된 현재 좌표
	Goal        string        `json:"goal,omitempty"`
	Route       []string      `json:"route,omitempty"`
	Battery     float64       `json:"battery"`
	Held        []Reservation `json:"held_reservations"`
}

// NodeOccupancy - 노드 점유 현황
type NodeOccupancy struct {
	NodeID    string `json:"node_id"`
	Capacity  int    `json:"capacity"`
	Occupants []int  `json:"occupants"` // 로봇 ID 오름차순
	Queued    []int  `json:"queued"`    // 대기열 순서 그대로
}

// EdgeOccupancy - 간선 점유 현황
type EdgeOccupancy struct {
	EdgeKey   string `json:"edge_key"`
	Capacity  int    `json:"capacity"`
	Occupants []int  `json:"occupants"`
	Queued    []int  `json:"queued"`
}

// TickStats - 틱 단위 플릿 통계
type TickStats struct {
	Tick              int64 `json:"tick"`
	TotalRobots       int   `json:"total_robots"`
	Idle              int   `json:"idle"`
	Planning          int   `json:"planning"`
	Moving            int   `json:"moving"`
	Waiting           int   `json:"waiting"`
	Blocked           int   `json:"blocked"`
	Arrived           int   `json:"arrived"`
	Failed            int   `json:"failed"`
	DeadlocksResolved int64 `json:"deadlocks_resolved"` // 누적
	Reroutes          int64 `json:"reroutes"`           // 누적
}
