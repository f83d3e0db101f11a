package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/mmdatafocus/beergame_backend/config"
	"github.com/mmdatafocus/beergame_backend/middlewares"
	"github.com/mmdatafocus/beergame_backend/models"
	"github.com/mmdatafocus/beergame_backend/models/reports"
	"github.com/mmdatafocus/beergame_backend/utils"
	"github.com/mmdatafocus/beergame_backend/workflow"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// statusForError maps domain errors to HTTP statuses. Everything unexpected
// is a 500; settlement failures are retryable and surface as 500 too.
func statusForError(err error) int {
	switch {
	case errors.Is(err, utils.ErrorGameNotFound), errors.Is(err, utils.ErrorRoleNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrorGameNotActive):
		return http.StatusConflict
	case errors.Is(err, utils.ErrorInvalidQuantity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}

func createGameHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewGame
		if !bindJSON(c, &input) {
			return
		}
		game, err := models.CreateGame(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, game)
	}
}

type addPlayerRequest struct {
	Role models.PlayerRole `json:"role" binding:"required"`
	Name string            `json:"name"`
	IsAI bool              `json:"is_ai"`
}

func addPlayerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addPlayerRequest
		if !bindJSON(c, &req) {
			return
		}
		available, err := models.CheckRoleAvailable(c.Request.Context(), c.Param("id"), req.Role)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !available {
			c.JSON(http.StatusConflict, gin.H{"error": "role is already taken"})
			return
		}
		name := req.Name
		if name == "" {
			name, _ = utils.GetPlayerNameFromContext(c.Request.Context())
		}
		if name == "" {
			name = string(req.Role)
		}
		player, err := models.AddPlayer(c.Request.Context(), c.Param("id"), req.Role, name, req.IsAI)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, player)
	}
}

func startGameHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := models.StartGame(c.Request.Context(), c.Param("id")); err != nil {
			abortWithError(c, err)
			return
		}
		state, err := models.GetGameState(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

type submitOrderRequest struct {
	Role     models.PlayerRole `json:"role" binding:"required"`
	Quantity *int              `json:"quantity" binding:"required"`
}

func submitOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitOrderRequest
		if !bindJSON(c, &req) {
			return
		}
		gameId := c.Param("id")
		accepted, err := models.SubmitOrder(c.Request.Context(), gameId, req.Role, *req.Quantity)
		if err != nil {
			abortWithError(c, err)
			return
		}

		// Settlement runs off the request path. The submitter never waits on
		// the other roles; correctness doesn't depend on this firing because
		// any later submission or explicit settle retriggers the check.
		ctx := utils.SetCorrelationIdInContext(context.Background(), correlationIdOf(c))
		go func() {
			if err := workflow.CheckAndSettle(ctx, gameId); err != nil {
				config.LogError(config.GetLogger(), "server.go", "submitOrderHandler", "async settlement", gameId, err)
			}
		}()

		c.JSON(http.StatusOK, gin.H{"accepted": accepted})
	}
}

func settleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		gameId := c.Param("id")
		if err := workflow.CheckAndSettle(c.Request.Context(), gameId); err != nil {
			abortWithError(c, err)
			return
		}
		state, err := models.GetGameState(c.Request.Context(), gameId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func getGameHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := models.GetGameState(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func getGameByCodeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := models.GetGameStateByCode(c.Request.Context(), strings.ToUpper(c.Param("code")))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

// getGamePlayersHandler is the lobby view: every role mapped to its seated
// player name, null while the seat is open.
func getGamePlayersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := models.GetGameById(c.Request.Context(), c.Param("id")); err != nil {
			abortWithError(c, err)
			return
		}
		seats, err := models.GetGamePlayers(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, seats)
	}
}

func getPlayerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		player, err := models.GetPlayer(c.Request.Context(), c.Param("id"), models.PlayerRole(c.Param("role")))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, player)
	}
}

func gameHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		weeks, err := models.GetGameHistory(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, weeks)
	}
}

func gameHistoryXlsxHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=game-history.xlsx")
		if err := reports.ExportGameHistoryXlsx(c.Request.Context(), c.Param("id"), c.Writer); err != nil {
			abortWithError(c, err)
			return
		}
	}
}

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Games are joined by shareable code; the feed carries no secrets.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// gameFeedHandler bridges the per-game redis channel onto a websocket.
// Clients receive the outbox payloads the dispatcher publishes; a missed
// message is recovered by refetching game state, so no replay is offered.
func gameFeedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		gameId := c.Param("id")
		if _, err := models.GetGameById(c.Request.Context(), gameId); err != nil {
			abortWithError(c, err)
			return
		}
		sub := config.SubscribeGameFeed(context.Background(), gameId)
		if sub == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feed not available"})
			return
		}
		conn, err := feedUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			sub.Close()
			return
		}

		// Reader exists only to notice the peer going away.
		go func() {
			defer sub.Close()
			defer conn.Close()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		go func() {
			defer sub.Close()
			defer conn.Close()
			for msg := range sub.Channel() {
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
					return
				}
			}
		}()
	}
}

type resetOrderRequest struct {
	Role models.PlayerRole `json:"role" binding:"required"`
}

func resetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resetOrderRequest
		if !bindJSON(c, &req) {
			return
		}
		reset, err := models.ResetPlayerOrder(c.Request.Context(), c.Param("id"), req.Role)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reset": reset})
	}
}

func debugGameHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := models.DebugGame(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func correlationIdOf(c *gin.Context) string {
	cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
	return cid
}

// customErrorLogger logs only requests that accumulated gin errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production require an explicit allowlist; in development allow all.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "x-player-name", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.SessionMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/games", createGameHandler())
	r.GET("/games/:id", getGameHandler())
	r.GET("/games/code/:code", getGameByCodeHandler())
	r.POST("/games/:id/players", addPlayerHandler())
	r.GET("/games/:id/players", getGamePlayersHandler())
	r.GET("/games/:id/players/:role", getPlayerHandler())
	r.POST("/games/:id/start", startGameHandler())
	r.POST("/games/:id/orders", submitOrderHandler())
	r.POST("/games/:id/settle", settleHandler())
	r.GET("/games/:id/history", gameHistoryHandler())
	r.GET("/games/:id/history.xlsx", gameHistoryXlsxHandler())
	r.GET("/games/:id/feed", gameFeedHandler())

	internal := r.Group("/internal", middlewares.AdminMiddleware())
	internal.POST("/games/:id/reset-order", resetOrderHandler())
	internal.GET("/games/:id/debug", debugGameHandler())

	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running it as a
	// separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Outbox dispatcher publishes committed game events AFTER commit.
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	go workflow.NewOutboxDispatcher(db, logger).Run(dispatcherCtx)

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work mid-drain.
	cancelDispatcher()

	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
