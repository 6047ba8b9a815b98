package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"fleet-backend/models"
	"fleet-backend/services"
)

// 전역 서비스 (main에서 주입)
var (
	fleet *services.FleetManager
	clock *services.SimulationClock
)

// Setup - 핸들러에 서비스 주입
func Setup(fm *services.FleetManager, sc *services.SimulationClock) {
	fleet = fm
	clock = sc
}

type AddRobotRequest struct {
	ID    int    `json:"id"` // 0이면 자동 배정
	Start string `json:"start"`
}

type AssignGoalRequest struct {
	Goal string `json:"goal"`
}

// HandleHealth - 헬스 체크
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"tick":    fleet.CurrentTick(),
		"running": clock.Running(),
		"viewers": Manager.GetClientCount(),
	})
}

// HandleAddRobot - 로봇 투입
func HandleAddRobot(c *fiber.Ctx) error {
	var req AddRobotRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "잘못된 요청 형식입니다",
		})
	}
	if req.Start == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "start 노드를 지정해야 합니다",
		})
	}

	robot, err := fleet.AddRobot(req.ID, req.Start)
	if err != nil {
		return fleetError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"robot":   robot,
	})
}

// HandleListRobots - 전체 로봇 상태 조회
func HandleListRobots(c *fiber.Ctx) error {
	snapshot := fleet.Snapshot()
	return c.JSON(fiber.Map{
		"success": true,
		"tick":    snapshot.Tick,
		"count":   len(snapshot.Robots),
		"robots":  snapshot.Robots,
	})
}

// HandleGetRobot - 로봇 하나 상태 조회
func HandleGetRobot(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "잘못된 로봇 ID",
		})
	}

	robot, err := fleet.Status(id)
	if err != nil {
		return fleetError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"robot":   robot,
	})
}

// HandleAssignGoal - 목표 배정
func HandleAssignGoal(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "잘못된 로봇 ID",
		})
	}

	var req AssignGoalRequest
	if err := c.BodyParser(&req); err != nil || req.Goal == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "goal 노드를 지정해야 합니다",
		})
	}

	if err := fleet.AssignGoal(id, req.Goal); err != nil {
		return fleetError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
	})
}

// HandleCancelGoal - 목표 취소
func HandleCancelGoal(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "잘못된 로봇 ID",
		})
	}

	if err := fleet.CancelGoal(id); err != nil {
		return fleetError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
	})
}

// HandleFleetStats - 플릿 통계 조회
func HandleFleetStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"stats":   fleet.Stats(),
	})
}

// HandleTick - 수동으로 한 틱 전진
func HandleTick(c *fiber.Ctx) error {
	if clock.Running() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "자동 틱 구동 중에는 수동 틱을 사용할 수 없습니다",
		})
	}
	stats := clock.StepOnce()
	return c.JSON(fiber.Map{
		"success": true,
		"stats":   stats,
	})
}

// HandleSimulationStart - 자동 틱 시작
func HandleSimulationStart(c *fiber.Ctx) error {
	clock.Start()
	return c.JSON(fiber.Map{
		"success": true,
		"running": true,
	})
}

// HandleSimulationStop - 자동 틱 중지
func HandleSimulationStop(c *fiber.Ctx) error {
	clock.Stop()
	return c.JSON(fiber.Map{
		"success": true,
		"running": false,
	})
}

// fleetError - 도메인 에러를 HTTP 상태로 매핑
func fleetError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrUnknownRobot), errors.Is(err, models.ErrUnknownNode):
		status = fiber.StatusNotFound
	case errors.Is(err, models.ErrDuplicateRobot), errors.Is(err, models.ErrNodeOccupied):
		status = fiber.StatusConflict
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
