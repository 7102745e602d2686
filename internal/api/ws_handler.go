package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jobcompass/internal/errcode"
	"jobcompass/internal/logger"
	"jobcompass/internal/store"
	"jobcompass/internal/worker"
)

const (
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// WsHandler relays a profile's task notifications from Redis to a WebSocket client.
type WsHandler struct {
	redisClient    *redis.Client
	store          *store.Store
	logger         *zap.Logger
	upgrader       websocket.Upgrader
	allowedOrigins []string
}

func NewWsHandler(redisClient *redis.Client, st *store.Store, log *zap.Logger, allowedOrigins []string) *WsHandler {
	h := &WsHandler{
		redisClient:    redisClient,
		store:          st,
		logger:         logger.OrNop(log).With(zap.String("component", "ws")),
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// checkOrigin allows same-host origins unless an allow list is configured.
func (h *WsHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.allowedOrigins) == 0 {
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// HandleConnection serves GET /v1/ws?user_profile_id=N.
func (h *WsHandler) HandleConnection(c *gin.Context) {
	id, err := strconv.ParseUint(c.Query("user_profile_id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, errcode.Invalid("user_profile_id", "The user profile id field is required."), "open the notification stream")
		return
	}
	profileID := uint(id)
	if _, err := h.store.Profiles.Get(c.Request.Context(), profileID); err != nil {
		respondError(c, err, "open the notification stream")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	log := h.logger.With(zap.String("client_ip", c.ClientIP()), zap.Uint("user_profile_id", profileID))
	errCh := make(chan error, 2)

	go h.readLoop(ctx, conn, errCh, cancel)
	go h.subscribeLoop(ctx, conn, profileID, errCh, cancel, log)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Info("websocket connection closed", zap.Error(err))
	}
}

// readLoop discards client frames; it only exists to notice disconnects.
func (h *WsHandler) readLoop(ctx context.Context, conn *websocket.Conn, errCh chan<- error, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			errCh <- fmt.Errorf("read message: %w", err)
			cancel()
			return
		}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteTimeout))
}

func (h *WsHandler) subscribeLoop(
	ctx context.Context,
	conn *websocket.Conn,
	profileID uint,
	errCh chan<- error,
	cancel context.CancelFunc,
	log *zap.Logger,
) {
	channel := worker.NotifyChannel(profileID)
	pubsub := h.redisClient.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Info("subscribed to redis channel", zap.String("channel", channel))

	ch := pubsub.Channel()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			writeClose(conn, websocket.CloseNormalClosure, "bye")
			return
		case msg, ok := <-ch:
			if !ok {
				writeClose(conn, websocket.CloseGoingAway, "notifications unavailable")
				errCh <- fmt.Errorf("pubsub channel closed")
				cancel()
				return
			}
			log.Debug("forwarding notification", zap.String("channel", channel))
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				errCh <- fmt.Errorf("write message: %w", err)
				cancel()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(wsWriteTimeout)); err != nil {
				errCh <- fmt.Errorf("write ping: %w", err)
				cancel()
				return
			}
		}
	}
}
