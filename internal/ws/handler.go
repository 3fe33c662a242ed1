// Package ws streams the active-player snapshot to connected clients. The
// feed is best-effort rendering data; settlement never depends on it.
package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"donutbet/internal/service/game"
	pkgAuth "donutbet/pkg/auth"
	"donutbet/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	gameSvc *game.Service
}

func NewHandler(gameSvc *game.Service) *Handler {
	return &Handler{gameSvc: gameSvc}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // game UI is served from other origins during dev
	},
}

func (h *Handler) HandlePlayersWS(c *gin.Context) {
	token, err := getTokenFromRequest(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	claims, err := pkgAuth.ParseUserToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	logger.Log.Info("New players feed connection",
		zap.String("discordID", claims.DiscordID))

	client := newClient(conn, claims.DiscordID, h.gameSvc)
	client.run()
}

func getTokenFromRequest(c *gin.Context) (string, error) {
	token := strings.TrimSpace(c.Query("token"))
	if token != "" {
		return token, nil
	}
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
			if token != "" {
				return token, nil
			}
		}
	}
	return "", errors.New("missing token")
}

type client struct {
	conn      *websocket.Conn
	discordID string
	gameSvc   *game.Service
	done      chan struct{}
	pushEvery time.Duration
	pingEvery time.Duration
}

func newClient(conn *websocket.Conn, discordID string, gameSvc *game.Service) *client {
	conn.SetReadLimit(1 << 16)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	return &client{
		conn:      conn,
		discordID: discordID,
		gameSvc:   gameSvc,
		done:      make(chan struct{}),
		pushEvery: 2 * time.Second,
		pingEvery: 25 * time.Second,
	}
}

func (c *client) run() {
	go c.writePump()
	c.readPump()
}

// readPump only watches for the peer closing the connection; the feed is
// one-directional.
func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			logger.Log.Info("WS read error", zap.Error(err), zap.String("discordID", c.discordID))
			return
		}
	}
}

func (c *client) writePump() {
	push := time.NewTicker(c.pushEvery)
	ping := time.NewTicker(c.pingEvery)
	defer func() {
		push.Stop()
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-push.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			players, err := c.gameSvc.Players(ctx)
			cancel()
			if err != nil {
				logger.Log.Warn("players snapshot failed", zap.Error(err))
				continue
			}
			if err := c.conn.WriteJSON(gin.H{"players": players}); err != nil {
				logger.Log.Info("WS write error", zap.Error(err), zap.String("discordID", c.discordID))
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
