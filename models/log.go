package models

import (
	"time"
)

// ========================================
// 교통 이벤트 타입 상수
// ========================================
const (
	EventSpawned          = "spawned"           // 로봇 투입
	EventGoalAssigned     = "goal_assigned"     // 목표 배정
	EventGoalCancelled    = "goal_cancelled"    // 목표 취소
	EventGranted          = "granted"           // 예약 승인
	EventQueued           = "queued"            // 예약 대기열 등록
	EventReleased         = "released"          // 예약 해제
	EventForcedRelease    = "forced_release"    // 교착 해소에 의한 강제 해제
	EventDeadlockResolved = "deadlock_resolved" // 교착 사이클 해소
	EventRerouted         = "rerouted"          // 경로 재계획
	EventArrived          = "arrived"           // 목적지 도착
	EventFailed           = "failed"            // 복구 불가 실패
)

// TrafficEvent - 틱 중 발생한 교통 이벤트 (브로드캐스트/저장용)
type TrafficEvent struct {
	Tick      int64     `json:"tick"`
	EventType string    `json:"event_type"`
	RobotID   int       `json:"robot_id"`
	Resource  string    `json:"resource,omitempty"` // 자원 키 ("node:A", "edge:A->B")
	VictimID  int       `json:"victim_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TrafficLog - 교통 이벤트 DB 레코드
type TrafficLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Tick      int64  `json:"tick"`
	EventType string `gorm:"index" json:"event_type"`
	RobotID   int    `gorm:"index" json:"robot_id"`
	Resource  string `json:"resource"`
	VictimID  int    `json:"victim_id"`
	Detail    string `json:"detail"`
}
