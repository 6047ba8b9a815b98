package services

import (
	"fleet-backend/algorithms"
	"fleet-backend/models"
)

// PathPlanner - 혼잡도 반영 경로 계획 서비스
//
// 그래프와 교통 스냅샷(현재 점유 수)의 순수 함수다. 혼잡한 간선의
// 비용을 높여서 흔한 경우에는 재계획 없이도 경로가 교통을 피해 간다.
type PathPlanner struct {
	graph     *models.Graph
	resources *ResourceManager
}

// NewPathPlanner - 경로 계획 서비스 생성
func NewPathPlanner(graph *models.Graph, resources *ResourceManager) *PathPlanner {
	return &PathPlanner{graph: graph, resources: resources}
}

// Plan - from에서 to까지의 경로 계산
//
// avoid에 지정한 자원은 탐색에서 제외한다 (강제 해제 후 재계획 시
// 직전 충돌 자원 회피). 경로가 없으면 models.ErrNoPath.
func (p *PathPlanner) Plan(from, to string, avoid *algorithms.Avoid) ([]string, error) {
	route, _, err := algorithms.FindPath(p.graph, from, to, p.congestionWeight, avoid)
	if err != nil {
		return nil, err
	}
	return route, nil
}

// PlanWithCost - 경로와 비용을 함께 반환 (API 조회용)
func (p *PathPlanner) PlanWithCost(from, to string) ([]string, float64, error) {
	return algorithms.FindPath(p.graph, from, to, p.congestionWeight, nil)
}

// congestionWeight - 혼잡도 가중치: weight * (1 + 점유수/용량)
func (p *PathPlanner) congestionWeight(e *models.Edge) float64 {
	if p.resources == nil {
		return e.Weight
	}
	occ := p.resources.OccupantCount(models.EdgeRef(e.From, e.To))
	return e.Weight * (1.0 + float64(occ)/float64(e.Capacity))
}

// AvoidResource - 충돌 자원 하나를 회피 집합으로 변환
func AvoidResource(ref models.ResourceRef) *algorithms.Avoid {
	avoid := &algorithms.Avoid{
		Nodes: make(map[string]bool),
		Edges: make(map[string]bool),
	}
	switch ref.Kind {
	case models.ResourceNode:
		avoid.Nodes[ref.ID] = true
	case models.ResourceEdge:
		avoid.Edges[ref.ID] = true
	}
	return avoid
}

// AvoidEdge - 간선 하나를 회피 집합으로 변환
func AvoidEdge(from, to string) *algorithms.Avoid {
	return &algorithms.Avoid{
		Edges: map[string]bool{models.EdgeKey(from, to): true},
	}
}
