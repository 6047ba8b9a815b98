package services

import (
	"log"
	"time"

	"fleet-backend/models"
)

// TrafficEventService - 교통 이벤트 파이프라인
//
// 플릿/예약 계층이 발행하는 교통 이벤트를 큐로 받아서 WebSocket
// 구독자에게 브로드캐스트하고 DB 로그 버퍼에 적재한다. 발행 측은
// 절대 블로킹되지 않는다 (큐가 가득 차면 이벤트를 버린다).
type TrafficEventService struct {
	broadcastFunc func(models.WebSocketMessage)

	eventQueue chan models.TrafficEvent
	stopChan   chan bool
}

// NewTrafficEventService - 교통 이벤트 서비스 생성
func NewTrafficEventService(broadcastFunc func(models.WebSocketMessage)) *TrafficEventService {
	return &TrafficEventService{
		broadcastFunc: broadcastFunc,
		eventQueue:    make(chan models.TrafficEvent, 256),
		stopChan:      make(chan bool),
	}
}

// Start - 이벤트 처리 시작
func (es *TrafficEventService) Start() {
	log.Println("📡 교통 이벤트 서비스 시작")
	go es.processEvents()
}

// Stop - 이벤트 처리 중지
func (es *TrafficEventService) Stop() {
	es.stopChan <- true
	log.Println("📡 교통 이벤트 서비스 중지")
}

// Publish - 이벤트 큐에 추가 (비차단)
func (es *TrafficEventService) Publish(event models.TrafficEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case es.eventQueue <- event:
	default:
		log.Printf("⚠️ 이벤트 큐 가득 참, 이벤트 무시: %s (로봇 %d)", event.EventType, event.RobotID)
	}
}

// processEvents - 이벤트 큐 처리
func (es *TrafficEventService) processEvents() {
	for {
		select {
		case event := <-es.eventQueue:
			es.handleEvent(event)
		case <-es.stopChan:
			return
		}
	}
}

// handleEvent - 브로드캐스트 + DB 로그 적재
func (es *TrafficEventService) handleEvent(event models.TrafficEvent) {
	if es.broadcastFunc != nil {
		es.broadcastFunc(models.WebSocketMessage{
			Type:      models.MessageTypeTrafficEvent,
			Data:      event,
			Timestamp: event.Timestamp.UnixMilli(),
		})
	}

	AddLog(models.TrafficLog{
		Tick:      event.Tick,
		EventType: event.EventType,
		RobotID:   event.RobotID,
		Resource:  event.Resource,
		VictimID:  event.VictimID,
		Detail:    event.Detail,
	})
}
