package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"fleet-backend/models"
)

// 로깅 버퍼 (비동기 일괄 처리)
type LogBuffer struct {
	logs      []models.TrafficLog
	mu        sync.Mutex
	flushSize int           // 일괄 저장 크기
	flushTime time.Duration // 자동 플러시 시간
	stopChan  chan bool
}

var logBuffer *LogBuffer

// InitLogging - 로깅 시스템 초기화
func InitLogging(flushSize int, flushInterval time.Duration) {
	logBuffer = &LogBuffer{
		logs:      make([]models.TrafficLog, 0, flushSize*2),
		flushSize: flushSize,
		flushTime: flushInterval,
		stopChan:  make(chan bool),
	}

	// 자동 플러시 고루틴 시작
	go logBuffer.autoFlush()

	log.Printf("✅ 로깅 시스템 초기화 완료 (flushSize: %d, flushInterval: %v)", flushSize, flushInterval)
}

// autoFlush - 주기적 로그 저장
func (lb *LogBuffer) autoFlush() {
	ticker := time.NewTicker(lb.flushTime)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lb.Flush()
		case <-lb.stopChan:
			lb.Flush() // 종료 시 남은 로그 저장
			return
		}
	}
}

// AddLog - 로그 버퍼에 추가 (비동기)
func AddLog(logEntry models.TrafficLog) {
	if logBuffer == nil {
		return
	}
	if logEntry.CreatedAt.IsZero() {
		logEntry.CreatedAt = time.Now()
	}

	logBuffer.mu.Lock()
	logBuffer.logs = append(logBuffer.logs, logEntry)
	size := len(logBuffer.logs)
	logBuffer.mu.Unlock()

	// 버퍼 크기가 차면 즉시 플러시
	if size >= logBuffer.flushSize {
		go logBuffer.Flush()
	}
}

// Flush - 버퍼의 모든 로그를 DB에 저장
func (lb *LogBuffer) Flush() {
	lb.mu.Lock()
	if len(lb.logs) == 0 {
		lb.mu.Unlock()
		return
	}

	// 로그 복사 및 버퍼 초기화
	logsToSave := make([]models.TrafficLog, len(lb.logs))
	copy(logsToSave, lb.logs)
	lb.logs = lb.logs[:0] // 버퍼 비우기
	lb.mu.Unlock()

	// DB 일괄 저장
	if db != nil {
		err := db.CreateInBatches(logsToSave, 100).Error
		if err != nil {
			log.Printf("❌ 로그 저장 실패: %v", err)
		} else {
			log.Printf("💾 로그 %d개 저장 완료", len(logsToSave))
		}
	}
}

// GetRecentLogs - 최근 로그 조회
func GetRecentLogs(robotID int, limit int) ([]models.TrafficLog, error) {
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}
	var logs []models.TrafficLog
	query := db.Order("created_at DESC").Limit(limit)
	if robotID > 0 {
		query = query.Where("robot_id = ?", robotID)
	}
	err := query.Find(&logs).Error
	return logs, err
}

// GetLogsByTimeRange - 시간 범위로 로그 조회
func GetLogsByTimeRange(robotID int, start, end time.Time, limit int) ([]models.TrafficLog, error) {
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}
	var logs []models.TrafficLog
	query := db.Where("created_at BETWEEN ? AND ?", start, end)
	if robotID > 0 {
		query = query.Where("robot_id = ?", robotID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Order("created_at DESC").Find(&logs).Error
	return logs, err
}

// GetLogsByEventType - 이벤트 타입별 로그 조회
func GetLogsByEventType(robotID int, eventType string, limit int) ([]models.TrafficLog, error) {
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}
	var logs []models.TrafficLog
	query := db.Where("event_type = ?", eventType)
	if robotID > 0 {
		query = query.Where("robot_id = ?", robotID)
	}
	err := query.Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// GetLogStats - 로그 통계
func GetLogStats(robotID int, hours int) (map[string]interface{}, error) {
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	base := db.Model(&models.TrafficLog{}).Where("created_at >= ?", since)
	if robotID > 0 {
		base = base.Where("robot_id = ?", robotID)
	}

	var totalLogs int64
	base.Count(&totalLogs)

	// 이벤트 타입별 카운트
	var eventCounts []struct {
		EventType string
		Count     int64
	}
	countQuery := db.Model(&models.TrafficLog{}).
		Select("event_type, COUNT(*) as count").
		Where("created_at >= ?", since)
	if robotID > 0 {
		countQuery = countQuery.Where("robot_id = ?", robotID)
	}
	countQuery.Group("event_type").Scan(&eventCounts)

	eventMap := make(map[string]int64)
	for _, ec := range eventCounts {
		eventMap[ec.EventType] = ec.Count
	}

	return map[string]interface{}{
		"total_logs":   totalLogs,
		"event_counts": eventMap,
		"time_range":   fmt.Sprintf("Last %d hours", hours),
	}, nil
}

// StopLogging - 로깅 시스템 종료
func StopLogging() {
	if logBuffer != nil {
		logBuffer.stopChan <- true
		log.Println("🛑 로깅 시스템 종료")
	}
}
