package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/handler"
	"github.com/anichkay-yyy/client-pipeline/internal/repository"
)

// Server is the operator-facing HTTP API.
type Server struct {
	router *gin.Engine
	db     *sqlx.DB
	logger *zap.Logger
}

func NewServer(db *sqlx.DB, logger *zap.Logger) *Server {
	router := gin.Default()

	s := &Server{
		router: router,
		db:     db,
		logger: logger,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	leadRepo := repository.NewLeadRepository(s.db, s.logger)
	channelRepo := repository.NewChannelRepository(s.db, s.logger)
	messageRepo := repository.NewMessageRepository(s.db, s.logger)
	budgetRepo := repository.NewBudgetRepository(s.db, s.logger)
	replyRepo := repository.NewReplyRepository(s.db, s.logger)

	leadHandler := handler.NewLeadHandler(leadRepo, replyRepo, s.logger)
	channelHandler := handler.NewChannelHandler(channelRepo, s.logger)
	statsHandler := handler.NewStatsHandler(leadRepo, messageRepo, budgetRepo, s.logger)
	budgetHandler := handler.NewBudgetHandler(budgetRepo, s.logger)
	replyHandler := handler.NewReplyHandler(replyRepo, s.logger)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	api := s.router.Group("/api")
	{
		api.GET("/stats", statsHandler.GetStats)

		api.GET("/leads", leadHandler.ListLeads)
		api.GET("/leads/:id", leadHandler.GetLead)
		api.POST("/leads/:id/reject", leadHandler.RejectLead)
		api.POST("/leads/:id/forward", leadHandler.ForwardLead)

		api.GET("/channels", channelHandler.ListChannels)
		api.POST("/channels/:id/deactivate", channelHandler.DeactivateChannel)

		api.GET("/budget", budgetHandler.GetBudget)
		api.PUT("/budget", budgetHandler.SetBudget)

		api.GET("/replies/unattached", replyHandler.ListUnattached)
	}
}

func (s *Server) Run(addr string) {
	s.logger.Info("Server starting", zap.String("addr", addr))
	if err := s.router.Run(addr); err != nil {
		s.logger.Fatal("Server failed to start", zap.Error(err))
	}
}
