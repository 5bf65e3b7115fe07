package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"upload-server-go/internal/files"
	"upload-server-go/internal/httpx/response"
	"upload-server-go/internal/logger"
	"upload-server-go/internal/sentryx"
)

const (
	// MaxConcurrentConnections is the maximum number of simultaneous WebSocket connections
	MaxConcurrentConnections = 50

	// WriteTimeout is the timeout for writing to WebSocket
	WriteTimeout = 10 * time.Second

	// PingInterval is how often to send ping messages
	PingInterval = 30 * time.Second

	// PongTimeout is how long a connection may stay silent before it is dropped
	PongTimeout = 5 * time.Minute
)

var wsLog = logger.WithComponent("WS")

// Frame is one upload request sent by the client.
type Frame struct {
	ID       string `json:"id,omitempty"`
	Path     string `json:"path"`
	Contents string `json:"contents"`
}

// frameBody is the decode shape of a Frame that keeps field presence.
type frameBody struct {
	ID string `json:"id"`
	files.RequestBody
}

// Reply is sent for every frame received.
type Reply struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Success bool   `json:"success,omitempty"`
	Path    string `json:"path,omitempty"`
	Size    int    `json:"size,omitempty"`
	Error   string `json:"error,omitempty"`
	Class   string `json:"class,omitempty"`
}

// Handler streams uploads over WebSocket connections.
type Handler struct {
	service      *files.Service
	upgrader     websocket.Upgrader
	activeConns  int32
	connections  sync.Map // map[*websocket.Conn]*connInfo
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

type connInfo struct {
	id         string
	startTime  time.Time
	remoteAddr string
	frames     int
	cancelFunc context.CancelFunc
	writeMu    sync.Mutex // Protects concurrent writes to websocket
}

// NewHandler creates a new WebSocket upload handler.
func NewHandler(service *files.Service) *Handler {
	return &Handler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if isAllowedWebSocketOrigin(origin, r.Host) {
					return true
				}
				wsLog.Warn("Rejected WebSocket origin: %s (host: %s)", origin, r.Host)
				return false
			},
		},
		shutdownChan: make(chan struct{}),
	}
}

// Handle handles GET /ws/upload.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.shutdownChan:
		response.Error(w, http.StatusServiceUnavailable, "Server shutting down")
		return
	default:
	}

	currentConns := atomic.LoadInt32(&h.activeConns)
	if currentConns >= MaxConcurrentConnections {
		wsLog.Warn("Connection rejected: max connections reached (%d)", currentConns)
		response.Error(w, http.StatusServiceUnavailable, "Too many connections")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wsLog.Error("WebSocket upgrade failed: %v", err)
		return
	}

	atomic.AddInt32(&h.activeConns, 1)
	defer atomic.AddInt32(&h.activeConns, -1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	info := &connInfo{
		id:         uuid.NewString(),
		startTime:  time.Now(),
		remoteAddr: r.RemoteAddr,
		cancelFunc: cancel,
	}
	h.connections.Store(conn, info)
	defer h.connections.Delete(conn)

	select {
	case <-h.shutdownChan:
		cancel()
	default:
	}

	wsLog.Info("Connection opened | conn=%s remoteAddr=%s", info.id, info.remoteAddr)
	h.serve(ctx, conn, info)
}

// serve reads frames until the client disconnects or the connection is cancelled.
func (h *Handler) serve(ctx context.Context, conn *websocket.Conn, info *connInfo) {
	defer func() {
		conn.Close()
		wsLog.Info("Connection closed | conn=%s frames=%d duration=%v", info.id, info.frames, time.Since(info.startTime))
	}()

	conn.SetReadDeadline(time.Now().Add(PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(PongTimeout))
		return nil
	})

	readDone := make(chan struct{})
	defer close(readDone)

	go func() {
		pingTicker := time.NewTicker(PingInterval)
		defer pingTicker.Stop()

		for {
			select {
			case <-pingTicker.C:
				if err := h.sendPing(conn, info); err != nil {
					wsLog.Debug("Ping failed: %v | conn=%s", err, info.id)
					return
				}
			case <-ctx.Done():
				h.sendClose(conn, info, websocket.CloseGoingAway, "server shutdown")
				conn.Close()
				return
			case <-readDone:
				return
			}
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				wsLog.Debug("WebSocket read error: %v | conn=%s", err, info.id)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(PongTimeout))

		reply := h.handleFrame(msgType, data)
		info.frames++
		if err := h.sendMessage(conn, info, reply); err != nil {
			wsLog.Debug("WebSocket write error: %v | conn=%s", err, info.id)
			return
		}
	}
}

func (h *Handler) handleFrame(msgType int, data []byte) Reply {
	if msgType != websocket.TextMessage {
		return Reply{Type: "error", Error: "Unsupported frame type", Class: "client"}
	}

	var frame frameBody
	if err := json.Unmarshal(data, &frame); err != nil {
		wsLog.Warn("Rejected frame: %v", err)
		return Reply{Type: "error", Error: "Invalid JSON frame", Class: "client"}
	}

	req, err := frame.Request()
	if err == nil {
		var result files.UploadResult
		if result, err = h.service.Upload(req); err == nil {
			return Reply{Type: "result", ID: frame.ID, Success: true, Path: result.Path, Size: result.Size}
		}
	}

	_, message := files.ErrorStatus(err)
	if files.IsClientError(err) {
		wsLog.Warn("Upload rejected | id=%s path=%q err=%v", frame.ID, req.Path, err)
		return Reply{Type: "error", ID: frame.ID, Error: message, Class: "client"}
	}
	wsLog.Error("Upload failed | id=%s path=%q err=%v", frame.ID, req.Path, err)
	sentryx.CaptureError(err, "ws upload failed path=%s", req.Path)
	return Reply{Type: "error", ID: frame.ID, Error: message, Class: "server"}
}

// sendMessage sends a WebSocket message (thread-safe)
func (h *Handler) sendMessage(conn *websocket.Conn, info *connInfo, msg Reply) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	info.writeMu.Lock()
	defer info.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// sendPing sends a ping message (thread-safe)
func (h *Handler) sendPing(conn *websocket.Conn, info *connInfo) error {
	info.writeMu.Lock()
	defer info.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return conn.WriteMessage(websocket.PingMessage, nil)
}

func (h *Handler) sendClose(conn *websocket.Conn, info *connInfo, code int, text string) {
	info.writeMu.Lock()
	defer info.writeMu.Unlock()
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

// ActiveConnections returns the number of active WebSocket connections
func (h *Handler) ActiveConnections() int {
	return int(atomic.LoadInt32(&h.activeConns))
}

// Shutdown closes all connections and waits for them to finish or ctx to expire.
func (h *Handler) Shutdown(ctx context.Context) {
	h.shutdownOnce.Do(func() { close(h.shutdownChan) })

	h.connections.Range(func(key, value interface{}) bool {
		if info, ok := value.(*connInfo); ok {
			info.cancelFunc()
		}
		return true
	})

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if atomic.LoadInt32(&h.activeConns) == 0 {
			wsLog.Info("All WebSocket connections closed")
			return
		}
		select {
		case <-ctx.Done():
			wsLog.Warn("Shutdown timeout, %d connections still active", atomic.LoadInt32(&h.activeConns))
			return
		case <-ticker.C:
		}
	}
}
