package models

import (
	"fmt"
	"math"
	"sort"
)

// ========================================
// 내비게이션 그래프
// 위상(노드/간선)은 로드 후 불변이며,
// 점유 상태는 ResourceManager가 단독 관리한다.
// ========================================

// Position - 2D 좌표 (미터)
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance - 두 좌표 간 유클리드 거리
func (p Position) Distance(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Node - 그래프 정점 (웨이포인트/교차로)
type Node struct {
	ID        string   `json:"id"`
	Position  Position `json:"position"`
	Capacity  int      `json:"capacity"`   // 동시 점유 가능 로봇 수 (기본 1, 대기 구역은 >1)
	IsCharger bool     `json:"is_charger"` // 충전 스테이션 여부
}

// Edge - 방향성 차선
type Edge struct {
	ID            string  `json:"id"`
	From          string  `json:"from"`
	To            string  `json:"to"`
	Weight        float64 `json:"weight"`        // 이동 비용 (기본: 유클리드 거리)
	Capacity      int     `json:"capacity"`      // 동시 통과 가능 로봇 수
	Bidirectional bool    `json:"bidirectional"` // 양방향 차선 여부
}

// Key - 방향 포함 간선 키 ("A->B")
func (e *Edge) Key() string { return EdgeKey(e.From, e.To) }

// GroupKey - 방향 무시 차선 그룹 키 (정면 충돌 판정용)
func (e *Edge) GroupKey() string { return LaneGroupKey(e.From, e.To) }

// EdgeKey - 간선 키 생성
func EdgeKey(from, to string) string { return from + "->" + to }

// LaneGroupKey - 양방향 차선의 공통 키
func LaneGroupKey(a, b string) string {
	if a < b {
		return a + "~" + b
	}
	return b + "~" + a
}

// Graph - 내비게이션 그래프
type Graph struct {
	ID    string
	Nodes map[string]*Node
	Edges map[string]*Edge // key = EdgeKey(from, to)

	adjacency map[string][]*Edge // 노드별 진출 간선
}

// NewGraph - 빈 그래프 생성
func NewGraph(id string) *Graph {
	return &Graph{
		ID:        id,
		Nodes:     make(map[string]*Node),
		Edges:     make(map[string]*Edge),
		adjacency: make(map[string][]*Edge),
	}
}

// AddNode - 노드 추가 (로드 단계에서만 사용)
func (g *Graph) AddNode(node *Node) error {
	if _, exists := g.Nodes[node.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID)
	}
	if node.Capacity <= 0 {
		node.Capacity = 1
	}
	g.Nodes[node.ID] = node
	return nil
}

// AddEdge - 방향성 간선 추가 (로드 단계에서만 사용)
//
// Weight가 0이면 양 끝 노드의 유클리드 거리를 사용한다.
func (g *Graph) AddEdge(edge *Edge) error {
	from, ok := g.Nodes[edge.From]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, edge.From)
	}
	to, ok := g.Nodes[edge.To]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, edge.To)
	}
	if edge.Capacity <= 0 {
		edge.Capacity = 1
	}
	if edge.Weight <= 0 {
		edge.Weight = from.Position.Distance(to.Position)
	}
	if edge.ID == "" {
		edge.ID = edge.Key()
	}
	g.Edges[edge.Key()] = edge
	g.adjacency[edge.From] = append(g.adjacency[edge.From], edge)

	// 결정적 순회를 위해 진출 간선을 목적지 ID 순으로 유지
	sort.Slice(g.adjacency[edge.From], func(i, j int) bool {
		return g.adjacency[edge.From][i].To < g.adjacency[edge.From][j].To
	})
	return nil
}

// Node - ID로 노드 조회
func (g *Graph) Node(id string) (*Node, error) {
	node, ok := g.Nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	return node, nil
}

// HasNode - 노드 존재 여부
func (g *Graph) HasNode(id string) bool {
	_, ok := g.Nodes[id]
	return ok
}

// Neighbors - 진출 간선 목록 (목적지 ID 오름차순)
func (g *Graph) Neighbors(nodeID string) ([]*Edge, error) {
	if _, ok := g.Nodes[nodeID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}
	return g.adjacency[nodeID], nil
}

// EdgeBetween - 두 노드 사이의 방향성 간선 조회
func (g *Graph) EdgeBetween(from, to string) (*Edge, error) {
	edge, ok := g.Edges[EdgeKey(from, to)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEdge, EdgeKey(from, to))
	}
	return edge, nil
}

// NodeIDs - 전체 노드 ID (오름차순)
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EdgeKeys - 전체 간선 키 (오름차순)
func (g *Graph) EdgeKeys() []string {
	keys := make([]string, 0, len(g.Edges))
	for key := range g.Edges {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
