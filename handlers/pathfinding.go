package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"fleet-backend/models"
)

type PathfindingRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type PathfindingResponse struct {
	Success bool     `json:"success"`
	Route   []string `json:"route,omitempty"`
	Cost    float64  `json:"cost,omitempty"`
	Message string   `json:"message,omitempty"`
}

// HandlePathfinding - 경로 탐색 조회 (예약 없이 계산만)
func HandlePathfinding(c *fiber.Ctx) error {
	var req PathfindingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(PathfindingResponse{
			Success: false,
			Message: "잘못된 요청 형식입니다",
		})
	}
	if req.From == "" || req.To == "" {
		return c.Status(fiber.StatusBadRequest).JSON(PathfindingResponse{
			Success: false,
			Message: "from, to 노드를 모두 지정해야 합니다",
		})
	}

	log.Printf("📍 경로 탐색 요청: %s -> %s", req.From, req.To)

	route, cost, err := fleet.Planner().PlanWithCost(req.From, req.To)
	if err != nil {
		if errors.Is(err, models.ErrUnknownNode) {
			return c.Status(fiber.StatusNotFound).JSON(PathfindingResponse{
				Success: false,
				Message: "존재하지 않는 노드입니다",
			})
		}
		log.Printf("❌ 경로를 찾을 수 없습니다: %s -> %s", req.From, req.To)
		return c.Status(fiber.StatusOK).JSON(PathfindingResponse{
			Success: false,
			Message: "경로를 찾을 수 없습니다",
		})
	}

	log.Printf("✅ 경로 탐색 성공: %d개 노드 (비용 %.2f)", len(route), cost)
	return c.Status(fiber.StatusOK).JSON(PathfindingResponse{
		Success: true,
		Route:   route,
		Cost:    cost,
	})
}
