package services

import (
	"log"
	"sync"
	"time"

	"fleet-backend/models"
)

// SimulationClock - 시뮬레이션 틱 시계
//
// 일정 간격으로 플릿을 한 틱씩 전진시키고, 틱마다 스냅샷을
// 브로드캐스트한다. 수동 모드에서는 StepOnce로 한 틱씩 돌릴 수 있다.
type SimulationClock struct {
	IsRunning     bool
	fleet         *FleetManager
	interval      time.Duration
	broadcastFunc func(models.WebSocketMessage)

	stopChan chan bool
	mu       sync.RWMutex
}

// NewSimulationClock - 시뮬레이션 시계 생성
func NewSimulationClock(fleet *FleetManager, interval time.Duration,
	broadcastFunc func(models.WebSocketMessage)) *SimulationClock {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &SimulationClock{
		fleet:         fleet,
		interval:      interval,
		broadcastFunc: broadcastFunc,
		stopChan:      make(chan bool),
	}
}

// Start - 자동 틱 시작
func (c *SimulationClock) Start() {
	c.mu.Lock()
	if c.IsRunning {
		c.mu.Unlock()
		return
	}
	c.IsRunning = true
	c.mu.Unlock()

	log.Printf("🚀 시뮬레이션 시작 (틱 간격: %v)", c.interval)
	go c.run()
}

// Stop - 자동 틱 중지
func (c *SimulationClock) Stop() {
	c.mu.Lock()
	if !c.IsRunning {
		c.mu.Unlock()
		return
	}
	c.IsRunning = false
	c.mu.Unlock()

	c.stopChan <- true
	log.Println("🛑 시뮬레이션 중지")
}

// StepOnce - 수동으로 한 틱 전진
func (c *SimulationClock) StepOnce() models.TickStats {
	stats := c.fleet.Tick()
	c.broadcastSnapshot()
	return stats
}

// Running - 자동 틱 구동 여부
func (c *SimulationClock) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.IsRunning
}

// run - 틱 메인 루프
func (c *SimulationClock) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.fleet.Tick()
			c.broadcastSnapshot()
		}
	}
}

// broadcastSnapshot - 플릿 스냅샷 브로드캐스트
func (c *SimulationClock) broadcastSnapshot() {
	if c.broadcastFunc == nil {
		return
	}
	c.broadcastFunc(models.WebSocketMessage{
		Type:      models.MessageTypeSnapshot,
		Data:      c.fleet.Snapshot(),
		Timestamp: time.Now().UnixMilli(),
	})
}
