package handler

import (
	"net/http"

	"pairchat/backend/internal/auth"
	"pairchat/backend/internal/chathub"
	"pairchat/backend/internal/config"
	"pairchat/backend/internal/logger"
	"pairchat/backend/internal/messaging"
	"pairchat/backend/internal/relationship"
	"pairchat/backend/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler is the REST and websocket boundary over the chat services.
type Handler struct {
	auth          *auth.Service
	relationships *relationship.Service
	messages      *messaging.Service
	hub           *chathub.Hub
	dispatcher    *chathub.Dispatcher
	store         storage.Storage
	chat          config.Chat
	log           *logger.Logger
	upgrader      websocket.Upgrader
}

func NewHandler(
	authSvc *auth.Service,
	relationships *relationship.Service,
	messages *messaging.Service,
	hub *chathub.Hub,
	store storage.Storage,
	chat config.Chat,
	allowedOrigins []string,
	log *logger.Logger,
) *Handler {
	h := &Handler{
		auth:          authSvc,
		relationships: relationships,
		messages:      messages,
		hub:           hub,
		store:         store,
		chat:          chat,
		log:           log.With("component", "Handler"),
	}
	h.dispatcher = chathub.NewDispatcher(hub, messages, log)
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// NewRouter wires every route. A nil gatherer leaves /metrics out.
func NewRouter(h *Handler, allowedOrigins []string, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	if len(allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = allowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/ws", h.ServeWebSocket)

	api := r.Group("/api")
	api.POST("/auth/signup", h.Signup)
	api.POST("/auth/login", h.Login)

	authed := api.Group("", h.RequireAuth())
	authed.GET("/me", h.Me)
	authed.PUT("/me/telegram", h.LinkTelegram)

	authed.POST("/friends/requests", h.SendFriendRequest)
	authed.GET("/friends/requests", h.ListFriendRequests)
	authed.POST("/friends/requests/:id/respond", h.RespondFriendRequest)
	authed.GET("/friends", h.ListFriends)
	authed.DELETE("/friends/:userId", h.RemoveFriend)

	authed.GET("/conversations", h.ListConversations)
	authed.GET("/conversations/:id/messages", h.FetchMessages)
	authed.POST("/conversations/:id/messages", h.SendMessage)
	authed.DELETE("/conversations/:id/messages/:messageId", h.DeleteMessage)

	return r
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
