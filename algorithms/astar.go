package algorithms

import (
	"container/heap"
	"fmt"

	"fleet-backend/models"
)

// WeightFunc - 간선 가중치 함수 (혼잡도 반영용)
type WeightFunc func(e *models.Edge) float64

// Avoid - 탐색에서 제외할 자원 (재계획 시 충돌 자원 회피)
type Avoid struct {
	Nodes map[string]bool // 노드 ID
	Edges map[string]bool // 간선 키 ("A->B")
}

func (a *Avoid) node(id string) bool {
	return a != nil && a.Nodes[id]
}

func (a *Avoid) edge(key string) bool {
	return a != nil && a.Edges[key]
}

// searchNode - A* 탐색 노드
type searchNode struct {
	id     string
	g      float64 // 시작점부터 누적 비용
	f      float64 // g + 휴리스틱
	hops   int     // 시작점부터 홉 수
	parent *searchNode
	index  int // for heap
}

// priorityQueue - A* 우선순위 큐
//
// 동일 비용 경로의 타이브레이크: 비용 → 홉 수 → 노드 ID 사전순.
// 입력이 같으면 항상 같은 경로를 돌려준다.
type priorityQueue []*searchNode

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].f != pq[j].f {
		return pq[i].f < pq[j].f
	}
	if pq[i].hops != pq[j].hops {
		return pq[i].hops < pq[j].hops
	}
	return pq[i].id < pq[j].id
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x interface{}) {
	n := len(*pq)
	node := x.(*searchNode)
	node.index = n
	*pq = append(*pq, node)
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.index = -1
	*pq = old[0 : n-1]
	return node
}

const costEpsilon = 1e-9

// best - 노드별 최적 도달 기록
type best struct {
	g      float64
	hops   int
	parent string
}

// better - (비용, 홉, 부모 ID) 사전식 비교
func better(g float64, hops int, parent string, cur best) bool {
	if g < cur.g-costEpsilon {
		return true
	}
	if g > cur.g+costEpsilon {
		return false
	}
	if hops != cur.hops {
		return hops < cur.hops
	}
	return parent < cur.parent
}

// FindPath - A* 최단 경로 탐색
//
// weight가 nil이면 간선의 기본 Weight를 사용한다.
// 휴리스틱은 목표 노드까지의 유클리드 거리.
// 경로가 없으면 models.ErrNoPath를 반환한다.
func FindPath(g *models.Graph, start, goal string, weight WeightFunc, avoid *Avoid) ([]string, float64, error) {
	if _, err := g.Node(start); err != nil {
		return nil, 0, err
	}
	goalNode, err := g.Node(goal)
	if err != nil {
		return nil, 0, err
	}
	if avoid.node(goal) {
		return nil, 0, fmt.Errorf("%w: %s -> %s", models.ErrNoPath, start, goal)
	}
	if weight == nil {
		weight = func(e *models.Edge) float64 { return e.Weight }
	}
	heuristic := func(id string) float64 {
		node, _ := g.Node(id)
		return node.Position.Distance(goalNode.Position)
	}

	if start == goal {
		return []string{start}, 0, nil
	}

	openSet := make(priorityQueue, 0)
	heap.Init(&openSet)
	closedSet := make(map[string]bool)
	bests := map[string]best{start: {g: 0}}

	heap.Push(&openSet, &searchNode{id: start, g: 0, f: heuristic(start)})

	for openSet.Len() > 0 {
		current := heap.Pop(&openSet).(*searchNode)
		if closedSet[current.id] {
			continue
		}
		closedSet[current.id] = true

		if current.id == goal {
			return reconstructPath(current), current.g, nil
		}

		neighbors, _ := g.Neighbors(current.id)
		for _, edge := range neighbors {
			if avoid.edge(edge.Key()) || avoid.node(edge.To) {
				continue
			}
			if closedSet[edge.To] {
				continue
			}

			tentativeG := current.g + weight(edge)
			tentativeHops := current.hops + 1

			if cur, ok := bests[edge.To]; ok && !better(tentativeG, tentativeHops, current.id, cur) {
				continue
			}
			bests[edge.To] = best{g: tentativeG, hops: tentativeHops, parent: current.id}

			heap.Push(&openSet, &searchNode{
				id:     edge.To,
				g:      tentativeG,
				f:      tentativeG + heuristic(edge.To),
				hops:   tentativeHops,
				parent: current,
			})
		}
	}

	return nil, 0, fmt.Errorf("%w: %s -> %s", models.ErrNoPath, start, goal)
}

// reconstructPath - 부모 링크를 따라 경로 복원
func reconstructPath(node *searchNode) []string {
	var path []string
	for current := node; current != nil; current = current.parent {
		path = append([]string{current.id}, path...)
	}
	return path
}
