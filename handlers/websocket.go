package handlers

import (
	"log"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"fleet-backend/models"
)

type Client struct {
	Conn       *websocket.Conn
	ClientType string // 현재는 "viewer"만 사용
}

// 클라이언트 관리자
type ClientManager struct {
	clients    map[*websocket.Conn]*Client
	broadcast  chan models.WebSocketMessage
	register   chan *Client
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
}

// 전역 클라이언트 관리자
var Manager = &ClientManager{
	clients:    make(map[*websocket.Conn]*Client),
	broadcast:  make(chan models.WebSocketMessage, 100),
	register:   make(chan *Client),
	unregister: make(chan *websocket.Conn),
}

// 클라이언트 관리 시작
func (manager *ClientManager) Start() {
	for {
		select {
		case client := <-manager.register:
			manager.mutex.Lock()
			manager.clients[client.Conn] = client
			manager.mutex.Unlock()
			log.Printf("클라이언트 등록: %s (%s)", client.ClientType, client.Conn.RemoteAddr())

		case conn := <-manager.unregister:
			manager.mutex.Lock()
			if client, ok := manager.clients[conn]; ok {
				delete(manager.clients, conn)
				_ = conn.Close()
				log.Printf("클라이언트 해제: %s (%s)", client.ClientType, conn.RemoteAddr())
			}
			manager.mutex.Unlock()
		case message := <-manager.broadcast:
			manager.handleBroadcast(message)
		}
	}
}

func (manager *ClientManager) handleBroadcast(message models.WebSocketMessage) {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	for conn, client := range manager.clients {
		err := conn.WriteJSON(message)
		if err != nil {
			log.Printf("전송 실패 (%s): %v", client.ClientType, err)
			go func(c *websocket.Conn) { manager.unregister <- c }(conn)
		}
	}
}

// 외부에서 호출할 수 있는 브로드캐스트 메서드
func (manager *ClientManager) BroadcastMessage(msg models.WebSocketMessage) {
	manager.broadcast <- msg
}

func (manager *ClientManager) GetClientCount() int {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()
	return len(manager.clients)
}

// 시각화 클라이언트 WebSocket Handler
//
// 단방향 피드: 서버가 틱 스냅샷과 교통 이벤트를 내려보내기만 한다.
// 클라이언트가 보내는 메시지는 읽어서 버린다 (연결 유지 감지용).
func HandleViewerWebSocket(c *websocket.Conn) {
	client := &Client{
		Conn:       c,
		ClientType: "viewer",
	}

	Manager.register <- client

	defer func() {
		Manager.unregister <- c
	}()

	// 연결 확인 메시지 전송
	welcomeMsg := models.WebSocketMessage{
		Type: models.MessageTypeSystemInfo,
		Data: map[string]interface{}{
			"message":      "시각화 클라이언트 연결됨",
			"connected_at": time.Now().Format(time.RFC3339),
		},
		Timestamp: time.Now().UnixMilli(),
	}
	_ = c.WriteJSON(welcomeMsg)

	for {
		var msg models.WebSocketMessage
		if err := c.ReadJSON(&msg); err != nil {
			log.Printf("뷰어 메시지 읽기 오류: %v", err)
			break
		}
	}
}
