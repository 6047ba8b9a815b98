package services

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"fleet-backend/models"
)

// ========================================
// 내비게이션 그래프 로더
// JSON 파일 형식:
//
//	{"levels": {"level1": {
//	  "vertices": [[x, y, {"name": "A", "capacity": 1, "is_charger": false}], ...],
//	  "lanes":    [[0, 1, {"weight": 2.0, "capacity": 1, "bidirectional": true}], ...]
//	}}}
//
// 검증 실패는 엔진 기동 전에 에러로 끝낸다.
// ========================================

type graphFile struct {
	Levels map[string]graphLevel `json:"levels"`
}

type graphLevel struct {
	Vertices []json.RawMessage `json:"vertices"`
	Lanes    []json.RawMessage `json:"lanes"`
}

type vertexAttrs struct {
	Name      string `json:"name"`
	Capacity  int    `json:"capacity"`
	IsCharger bool   `json:"is_charger"`
}

type laneAttrs struct {
	Weight        float64 `json:"weight"`
	Capacity      int     `json:"capacity"`
	Bidirectional bool    `json:"bidirectional"`
}

// LoadGraphFile - 파일에서 그래프 로드
func LoadGraphFile(path string) (*models.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("그래프 파일 읽기 실패: %w", err)
	}
	graph, err := ParseGraph(data)
	if err != nil {
		return nil, err
	}
	log.Printf("✅ 그래프 로드 완료: %s (노드 %d개, 간선 %d개)", path, len(graph.Nodes), len(graph.Edges))
	return graph, nil
}

// ParseGraph - JSON 데이터에서 그래프 파싱/검증
//
// 첫 번째 레벨만 사용한다 (단일 층 운영).
func ParseGraph(data []byte) (*models.Graph, error) {
	var file graphFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("그래프 JSON 파싱 실패: %w", err)
	}

	level, ok := file.Levels["level1"]
	if !ok {
		for _, l := range file.Levels {
			level = l
			ok = true
			break
		}
	}
	if !ok {
		return nil, fmt.Errorf("그래프에 레벨이 없습니다")
	}

	graph := models.NewGraph(uuid.New().String())

	// 정점: [x, y, {attrs}] — attrs 생략 가능
	names := make([]string, len(level.Vertices))
	for i, raw := range level.Vertices {
		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil || len(parts) < 2 {
			return nil, fmt.Errorf("정점 %d 형식 오류", i)
		}

		var x, y float64
		if err := json.Unmarshal(parts[0], &x); err != nil {
			return nil, fmt.Errorf("정점 %d x 좌표 오류", i)
		}
		if err := json.Unmarshal(parts[1], &y); err != nil {
			return nil, fmt.Errorf("정점 %d y 좌표 오류", i)
		}

		attrs := vertexAttrs{}
		if len(parts) >= 3 {
			if err := json.Unmarshal(parts[2], &attrs); err != nil {
				return nil, fmt.Errorf("정점 %d 속성 오류: %v", i, err)
			}
		}
		if attrs.Name == "" {
			attrs.Name = fmt.Sprintf("v%d", i)
		}
		names[i] = attrs.Name

		if err := graph.AddNode(&models.Node{
			ID:        attrs.Name,
			Position:  models.Position{X: x, Y: y},
			Capacity:  attrs.Capacity,
			IsCharger: attrs.IsCharger,
		}); err != nil {
			return nil, fmt.Errorf("정점 %d: %w", i, err)
		}
	}

	// 차선: [fromIdx, toIdx, {attrs}] — 양방향이면 두 방향 모두 추가
	for i, raw := range level.Lanes {
		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil || len(parts) < 2 {
			return nil, fmt.Errorf("차선 %d 형식 오류", i)
		}

		var fromIdx, toIdx int
		if err := json.Unmarshal(parts[0], &fromIdx); err != nil {
			return nil, fmt.Errorf("차선 %d 출발 인덱스 오류", i)
		}
		if err := json.Unmarshal(parts[1], &toIdx); err != nil {
			return nil, fmt.Errorf("차선 %d 도착 인덱스 오류", i)
		}
		if fromIdx < 0 || fromIdx >= len(names) || toIdx < 0 || toIdx >= len(names) {
			return nil, fmt.Errorf("차선 %d: 존재하지 않는 정점 인덱스 (%d -> %d)", i, fromIdx, toIdx)
		}

		attrs := laneAttrs{}
		if len(parts) >= 3 {
			if err := json.Unmarshal(parts[2], &attrs); err != nil {
				return nil, fmt.Errorf("차선 %d 속성 오류: %v", i, err)
			}
		}

		if err := graph.AddEdge(&models.Edge{
			From:          names[fromIdx],
			To:            names[toIdx],
			Weight:        attrs.Weight,
			Capacity:      attrs.Capacity,
			Bidirectional: attrs.Bidirectional,
		}); err != nil {
			return nil, fmt.Errorf("차선 %d: %w", i, err)
		}
		if attrs.Bidirectional {
			if err := graph.AddEdge(&models.Edge{
				From:          names[toIdx],
				To:            names[fromIdx],
				Weight:        attrs.Weight,
				Capacity:      attrs.Capacity,
				Bidirectional: true,
			}); err != nil {
				return nil, fmt.Errorf("차선 %d (역방향): %w", i, err)
			}
		}
	}

	return graph, nil
}

// GenerateSampleGraph - 내장 샘플 그래프 생성 (GRAPH_FILE 미지정 시)
//
// rows x cols 격자. 노드 ID는 "n<r>_<c>", 가로/세로 인접 노드를
// 양방향 차선으로 연결한다. 좌상단 노드는 충전 스테이션.
// 무작위 요소가 없어 결정적이다.
func GenerateSampleGraph(rows, cols int, spacing float64) *models.Graph {
	if rows <= 0 {
		rows = 4
	}
	if cols <= 0 {
		cols = 4
	}
	if spacing <= 0 {
		spacing = 2.0
	}

	graph := models.NewGraph(uuid.New().String())

	nodeID := func(r, c int) string { return fmt.Sprintf("n%d_%d", r, c) }

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			_ = graph.AddNode(&models.Node{
				ID:        nodeID(r, c),
				Position:  models.Position{X: float64(c) * spacing, Y: float64(r) * spacing},
				IsCharger: r == 0 && c == 0,
			})
		}
	}

	addLane := func(a, b string) {
		_ = graph.AddEdge(&models.Edge{From: a, To: b, Bidirectional: true})
		_ = graph.AddEdge(&models.Edge{From: b, To: a, Bidirectional: true})
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c+1 < cols {
				addLane(nodeID(r, c), nodeID(r, c+1))
			}
			if r+1 < rows {
				addLane(nodeID(r, c), nodeID(r+1, c))
			}
		}
	}

	log.Printf("✅ 샘플 그래프 생성: %dx%d 격자 (노드 %d개, 간선 %d개)",
		rows, cols, len(graph.Nodes), len(graph.Edges))
	return graph
}
