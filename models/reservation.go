package models

import (
	"github.com/google/uuid"
)

// ========================================
// 자원 예약
// ========================================

// AccessMode - 예약 모드
type AccessMode string

const (
	ModeExclusive AccessMode = "exclusive" // 배타적 점유 (노드 기본)
	ModeShared    AccessMode = "shared"    // 용량 내 공유 점유
)

// Decision - 예약 요청 결과
type Decision string

const (
	DecisionGranted Decision = "granted" // 즉시 승인
	DecisionQueued  Decision = "queued"  // FIFO 대기열 등록
	DecisionDenied  Decision = "denied"  // 잘못된 참조 (재시도 불가)
)

// ResourceKind - 자원 종류
type ResourceKind string

const (
	ResourceNode ResourceKind = "node"
	ResourceEdge ResourceKind = "edge"
)

// ResourceRef - 자원 참조
type ResourceRef struct {
	Kind ResourceKind `json:"kind"`
	ID   string       `json:"id"` // 노드 ID 또는 간선 키 ("A->B")
}

// Key - 예약 테이블 키
func (r ResourceRef) Key() string { return string(r.Kind) + ":" + r.ID }

// NodeRef - 노드 자원 참조
func NodeRef(nodeID string) ResourceRef {
	return ResourceRef{Kind: ResourceNode, ID: nodeID}
}

// EdgeRef - 간선 자원 참조
func EdgeRef(from, to string) ResourceRef {
	return ResourceRef{Kind: ResourceEdge, ID: EdgeKey(from, to)}
}

// Reservation - 로봇 하나에게 부여된 자원 사용 권한
//
// 생성 시 부여되고, 로봇이 점유하는 동안 유지되며,
// 다음 노드 도착 시 또는 강제 해제(교착 해소) 시 소멸한다.
type Reservation struct {
	ID       string      `json:"id"` // uuid
	RobotID  int         `json:"robot_id"`
	Resource ResourceRef `json:"resource"`
	Mode     AccessMode  `json:"mode"`
	Tick     int64       `json:"tick"` // 승인 시점 틱
}

// NewReservation - 예약 생성
func NewReservation(robotID int, resource ResourceRef, mode AccessMode, tick int64) *Reservation {
	return &Reservation{
		ID:       uuid.New().String(),
		RobotID:  robotID,
		Resource: resource,
		Mode:     mode,
		Tick:     tick,
	}
}
