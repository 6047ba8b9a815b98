package models

import "errors"

// ========================================
// 교통 조정 엔진 오류 타입
// ========================================
var (
	// ErrUnknownNode - 존재하지 않는 노드 참조
	ErrUnknownNode = errors.New("unknown node")

	// ErrUnknownEdge - 존재하지 않는 간선 참조
	ErrUnknownEdge = errors.New("unknown edge")

	// ErrUnknownRobot - 존재하지 않는 로봇 참조
	ErrUnknownRobot = errors.New("unknown robot")

	// ErrDuplicateNode - 노드 ID 중복 (그래프 로드 시)
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrDuplicateRobot - 로봇 ID 중복
	ErrDuplicateRobot = errors.New("duplicate robot id")

	// ErrNoPath - 목적지까지 경로 없음 (위상 고정이므로 구조적 실패)
	ErrNoPath = errors.New("no path")

	// ErrNodeOccupied - 시작 노드가 이미 점유됨
	ErrNodeOccupied = errors.New("node occupied")
)
