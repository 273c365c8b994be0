package providers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/relaywire/liveview/src/live"
)

// RegisterRoutes registers the introspection routes via Fiber. The actual
// websocket upgrade uses FastHTTPHandler, registered at the app level since
// Fiber v3 does not expose *fasthttp.RequestCtx.
func (p *Provider) RegisterRoutes(group fiber.Router) {
	group.Get("/live/info", p.handleInfo)
	group.Get("/live/channels", p.handleChannels)
	group.Get("/live/presence", p.handlePresence)
	group.Post("/live/publish", p.handlePublish)
}

func (p *Provider) handleInfo(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"websocket": true,
		"endpoint":  "/live",
		"sessions":  p.svc.SessionCount(),
		"channels":  len(p.svc.Channels().ChannelNames()),
	})
}

func (p *Provider) handleChannels(c fiber.Ctx) error {
	counts := p.svc.Channels().Counts()
	channels := make([]fiber.Map, 0, len(counts))
	for name, subscribers := range counts {
		channels = append(channels, fiber.Map{
			"channel":     name,
			"subscribers": subscribers,
		})
	}
	return c.JSON(fiber.Map{"channels": channels, "count": len(channels)})
}

func (p *Provider) handlePresence(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"presence": p.svc.Presence().List()})
}

func (p *Provider) handlePublish(c fiber.Ctx) error {
	var req struct {
		Topic string         `json:"topic"`
		Data  map[string]any `json:"data"`
	}
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if req.Topic == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "topic is required"})
	}
	if err := p.svc.Publish(req.Topic, req.Data); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"published": true, "topic": req.Topic})
}

// FastHTTPHandler returns a raw fasthttp handler for websocket upgrades.
// Register this on the fasthttp server at the "/live" path.
func (p *Provider) FastHTTPHandler() fasthttp.RequestHandler {
	cfg := p.svc.Config()
	upgrader := websocket.FastHTTPUpgrader{
		ReadBufferSize:    cfg.ReadBufferSize,
		WriteBufferSize:   cfg.WriteBufferSize,
		EnableCompression: cfg.Compression,
	}

	return func(ctx *fasthttp.RequestCtx) {
		upgrade := string(ctx.Request.Header.Peek("Upgrade"))
		if !strings.EqualFold(upgrade, "websocket") {
			ctx.SetStatusCode(fasthttp.StatusUpgradeRequired)
			ctx.SetBodyString(`{"error":"upgrade_required","message":"WebSocket upgrade required"}`)
			return
		}

		sessionID := uuid.New().String()

		err := upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
			p.serve(sessionID, conn)
		})
		if err != nil {
			p.logger.Error().Err(err).Msg("websocket upgrade failed")
		}
	}
}

// serve owns an upgraded connection: it mounts a session, runs its event
// loop, and pumps inbound frames into it until the peer goes away.
func (p *Provider) serve(sessionID string, conn *websocket.Conn) {
	cfg := p.svc.Config()
	conn.SetReadLimit(cfg.MaxFrameSize)

	wc := newWSConn(conn, cfg.WriteTimeout)

	runner, err := p.mount(sessionID, wc)
	if err != nil {
		p.logger.Error().Err(err).Str("session_id", sessionID).Msg("mount rejected connection")
		wc.Close(live.CloseNormal, "mount failed")
		return
	}
	if err := p.svc.Register(sessionID, runner); err != nil {
		p.logger.Warn().Err(err).Msg("rejecting connection")
		wc.Close(live.CloseGoingAway, "server at capacity")
		return
	}
	defer p.svc.Unregister(sessionID)

	go func() {
		if err := runner.Run(context.Background()); err != nil {
			p.logger.Debug().Err(err).Str("session_id", sessionID).Msg("session loop error")
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		runner.Feed(data)
	}
	runner.Close("peer disconnected")
}
