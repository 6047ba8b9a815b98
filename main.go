package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"fleet-backend/handlers"
	"fleet-backend/models"
	"fleet-backend/services"
)

func main() {
	// .env 파일 로드
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env 파일을 찾을 수 없습니다.")
	}

	// MySQL 연결 (미설정 시 로그 저장 없이 구동)
	if os.Getenv("MYSQL_HOST") != "" {
		if err := services.InitDatabase(); err != nil {
			log.Fatalf("❌ DB 초기화 실패: %v", err)
		}
	} else {
		log.Println("⚠️ MYSQL_HOST 미설정, DB 없이 실행합니다")
	}

	// 로깅 시스템 초기화
	// flushSize: 50 (로그 50개마다 일괄 저장)
	// flushInterval: 10초 (매 10초마다 자동 저장)
	services.InitLogging(50, 10*time.Second)
	defer services.StopLogging() // 종료 시 남은 로그 저장

	// 그래프 로드 (GRAPH_FILE 미지정 시 샘플 격자)
	var graph *models.Graph
	if path := os.Getenv("GRAPH_FILE"); path != "" {
		loaded, err := services.LoadGraphFile(path)
		if err != nil {
			log.Fatalf("❌ 그래프 로드 실패: %v", err)
		}
		graph = loaded
	} else {
		graph = services.GenerateSampleGraph(4, 4, 2.0)
	}

	// 코디네이션 엔진 조립
	config := services.DefaultControllerConfig()
	if budget := envInt("FLEET_RETRY_BUDGET", 0); budget > 0 {
		config.RetryBudget = budget
	}

	events := services.NewTrafficEventService(handlers.Manager.BroadcastMessage)
	events.Start()
	defer events.Stop()

	fleet := services.NewFleetManager(graph, config, events)

	tickInterval := time.Duration(envInt("TICK_INTERVAL_MS", 200)) * time.Millisecond
	clock := services.NewSimulationClock(fleet, tickInterval, handlers.Manager.BroadcastMessage)

	handlers.Setup(fleet, clock)

	app := fiber.New()

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:5173, http://localhost:3000",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	go handlers.Manager.Start()

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("플릿 교통 관제 서버가 실행 중입니다.")
	})

	api := app.Group("/api")

	api.Get("/health", handlers.HandleHealth)

	// 플릿 관리
	api.Post("/robots", handlers.HandleAddRobot)
	api.Get("/robots", handlers.HandleListRobots)
	api.Get("/robots/:id", handlers.HandleGetRobot)
	api.Post("/robots/:id/goal", handlers.HandleAssignGoal)
	api.Delete("/robots/:id/goal", handlers.HandleCancelGoal)
	api.Get("/fleet/stats", handlers.HandleFleetStats)

	// 시뮬레이션 제어
	api.Post("/tick", handlers.HandleTick)
	api.Post("/simulation/start", handlers.HandleSimulationStart)
	api.Post("/simulation/stop", handlers.HandleSimulationStop)

	// 경로 탐색
	api.Post("/pathfinding", handlers.HandlePathfinding)

	// 로그 조회 API
	logsAPI := api.Group("/logs")
	logsAPI.Get("/recent", handlers.HandleGetRecentLogs)     // 최근 로그
	logsAPI.Get("/range", handlers.HandleGetLogsByTimeRange) // 시간 범위
	logsAPI.Get("/type", handlers.HandleGetLogsByEventType)  // 이벤트 타입별
	logsAPI.Get("/stats", handlers.HandleGetLogStats)        // 통계

	// WebSocket
	app.Use("/websocket", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/websocket/viewer", websocket.New(handlers.HandleViewerWebSocket))

	// 자동 틱 시작 (AUTO_TICK=true)
	if os.Getenv("AUTO_TICK") == "true" {
		clock.Start()
		defer clock.Stop()
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Printf("🚀 서버 시작: http://localhost:%s", port)
	log.Printf("📡 WebSocket: ws://localhost:%s/websocket/viewer", port)
	log.Printf("💾 로그 API: GET http://localhost:%s/api/logs/*", port)
	log.Fatal(app.Listen(":" + port))
}

// envInt - 정수 환경 변수 (미설정/오류 시 기본값)
func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
