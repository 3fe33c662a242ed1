package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"donutbet/internal/middleware"
	"donutbet/internal/service"
	"donutbet/internal/ws"
	"donutbet/pkg/apperrors"
	"donutbet/pkg/logger"
	"donutbet/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	services *service.Container
}

// RegisterRoutes wires the single canonical route table: identity, ledger,
// payments, coinflip and game sessions all live behind one handler set.
func RegisterRoutes(r *gin.Engine, services *service.Container) {
	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(services.Game)

	r.GET("/ping", func(c *gin.Context) {
		response.OK(c, gin.H{"message": "pong"})
	})

	authGroup := r.Group("/auth")
	{
		authGroup.GET("/discord", handler.DiscordLogin)
		authGroup.GET("/discord/callback", handler.DiscordCallback)
		authGroup.GET("/user", middleware.AuthRequired(), handler.CurrentUser)
	}

	r.GET("/get-coins/:id", handler.GetCoins)
	r.GET("/change-coins/:id/:amount", middleware.AdminAuthRequired(), handler.ChangeCoins)

	r.POST("/create-payment", handler.CreatePayment)
	r.POST("/confirm-payment", handler.ConfirmPayment)
	r.GET("/payment-status/:id", handler.PaymentStatus)

	r.POST("/coinflip", middleware.AuthRequired(), handler.Coinflip)

	gameGroup := r.Group("/game")
	{
		gameGroup.POST("/join", middleware.AuthRequired(), handler.GameJoin)
		gameGroup.POST("/kill", middleware.AuthRequired(), handler.GameKill)
		gameGroup.POST("/start-cashout", middleware.AuthRequired(), handler.StartCashout)
		gameGroup.POST("/finish-cashout", middleware.AuthRequired(), handler.FinishCashout)
		gameGroup.GET("/players", handler.GamePlayers)
	}
	r.POST("/tournament/join", middleware.AuthRequired(), handler.TournamentJoin)

	adminGroup := r.Group("/admin")
	{
		adminGroup.POST("/login", handler.AdminLogin)
		adminGroup.GET("/house", middleware.AdminAuthRequired(), handler.HouseBalance)
	}

	r.GET("/ws/players", wsHandler.HandlePlayersWS)
}

type createPaymentBody struct {
	Username string `json:"username" binding:"required"`
	Amount   int64  `json:"amount" binding:"required"`
}

type confirmPaymentBody struct {
	Username string `json:"username" binding:"required"`
	Amount   int64  `json:"amount" binding:"required"`
}

type coinflipBody struct {
	Bet    int64  `json:"bet" binding:"required"`
	Choice string `json:"choice" binding:"required"`
}

type gameJoinBody struct {
	EntryFee     int64 `json:"entryFee"`
	IsTournament bool  `json:"isTournament"`
}

type gameKillBody struct {
	KilledDiscordID string `json:"killedDiscordId" binding:"required"`
}

type adminLoginBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) DiscordLogin(c *gin.Context) {
	authorizeURL, err := h.services.Auth.AuthorizeURL(c.Request.Context())
	if err != nil {
		logger.Log.Error("failed to issue oauth state", zap.Error(err))
		c.Redirect(http.StatusFound, "/?error=auth_failed")
		return
	}
	c.Redirect(http.StatusFound, authorizeURL)
}

func (h *Handler) DiscordCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.Redirect(http.StatusFound, "/?error=no_code")
		return
	}

	result, err := h.services.Auth.HandleCallback(c.Request.Context(), code, c.Query("state"))
	if err != nil {
		// Upstream detail stays in the server log; the user only sees a
		// generic failure redirect.
		logger.Log.Warn("discord login failed", zap.Error(err))
		c.Redirect(http.StatusFound, "/?error=auth_failed")
		return
	}

	c.Redirect(http.StatusFound, "/?token="+url.QueryEscape(result.Token))
}

func (h *Handler) CurrentUser(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	user, err := h.services.Auth.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			response.Error(c, http.StatusNotFound, "User not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to load user")
		return
	}

	response.OK(c, gin.H{
		"discordId": user.DiscordID,
		"username":  user.Username,
		"coins":     user.Coins,
	})
}

func (h *Handler) GetCoins(c *gin.Context) {
	coins, err := h.services.Ledger.GetCoins(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load coins")
		return
	}
	response.OK(c, gin.H{"coins": coins})
}

func (h *Handler) ChangeCoins(c *gin.Context) {
	amount, err := strconv.ParseInt(c.Param("amount"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid amount")
		return
	}

	_, err = h.services.Ledger.AdjustCoins(c.Request.Context(), c.Param("id"), amount)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			response.Error(c, http.StatusNotFound, "User not found")
		case errors.Is(err, apperrors.ErrInsufficientBalance):
			response.Error(c, http.StatusBadRequest, "Insufficient coins")
		default:
			response.Error(c, http.StatusInternalServerError, "failed to change coins")
		}
		return
	}
	response.Text(c, "ok")
}

func (h *Handler) CreatePayment(c *gin.Context) {
	var body createPaymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.services.Payment.Create(c.Request.Context(), body.Username, body.Amount)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidAmount) {
			response.Error(c, http.StatusBadRequest, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to create payment")
		return
	}
	response.OK(c, gin.H{"id": id})
}

func (h *Handler) ConfirmPayment(c *gin.Context) {
	var body confirmPaymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	err := h.services.Payment.Confirm(c.Request.Context(), body.Username, body.Amount)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidAmount):
			response.Error(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, apperrors.ErrPaymentNotFound):
			response.Error(c, http.StatusNotFound, "Payment not found")
		case errors.Is(err, apperrors.ErrUserNotFound):
			response.Error(c, http.StatusNotFound, "User not found")
		default:
			response.Error(c, http.StatusInternalServerError, "failed to confirm payment")
		}
		return
	}
	response.Text(c, "ok")
}

func (h *Handler) PaymentStatus(c *gin.Context) {
	status, err := h.services.Payment.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load payment")
		return
	}
	response.OK(c, gin.H{"status": status})
}

func (h *Handler) Coinflip(c *gin.Context) {
	var body coinflipBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	discordID, ok := getDiscordID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	result, err := h.services.Coinflip.Flip(c.Request.Context(), discordID, body.Bet, body.Choice)
	if err != nil {
		h.handleWagerError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *Handler) GameJoin(c *gin.Context) {
	var body gameJoinBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	discordID, ok := getDiscordID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	result, err := h.services.Game.Join(c.Request.Context(), discordID, body.EntryFee, body.IsTournament)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *Handler) GameKill(c *gin.Context) {
	var body gameKillBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	discordID, ok := getDiscordID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	result, err := h.services.Game.Kill(c.Request.Context(), discordID, body.KilledDiscordID)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *Handler) StartCashout(c *gin.Context) {
	discordID, ok := getDiscordID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if err := h.services.Game.StartCashout(c.Request.Context(), discordID); err != nil {
		h.handleGameError(c, err)
		return
	}
	response.OK(c, gin.H{"success": true, "message": "Cashout started"})
}

func (h *Handler) FinishCashout(c *gin.Context) {
	discordID, ok := getDiscordID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	result, err := h.services.Game.FinishCashout(c.Request.Context(), discordID)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	response.OK(c, gin.H{
		"success":    true,
		"gained":     result.Gained,
		"fee":        result.Fee,
		"kills":      result.Kills,
		"totalCoins": result.TotalCoins,
	})
}

func (h *Handler) GamePlayers(c *gin.Context) {
	players, err := h.services.Game.Players(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to fetch players")
		return
	}
	response.OK(c, gin.H{"players": players})
}

func (h *Handler) TournamentJoin(c *gin.Context) {
	discordID, ok := getDiscordID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	result, err := h.services.Game.JoinTournament(c.Request.Context(), discordID)
	if err != nil {
		h.handleGameError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var body adminLoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Admin.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrAdminNotFound), errors.Is(err, apperrors.ErrInvalidAdminPassword):
			response.Error(c, http.StatusUnauthorized, "invalid username or password")
		case errors.Is(err, apperrors.ErrAdminDisabled):
			response.Error(c, http.StatusForbidden, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, "login failed")
		}
		return
	}
	response.OK(c, result)
}

func (h *Handler) HouseBalance(c *gin.Context) {
	coins, err := h.services.Ledger.HouseBalance(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load house balance")
		return
	}
	response.OK(c, gin.H{"houseCoins": coins})
}

func (h *Handler) handleWagerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		response.Error(c, http.StatusNotFound, "User not found")
	case errors.Is(err, apperrors.ErrInvalidBet), errors.Is(err, apperrors.ErrInvalidChoice):
		response.Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperrors.ErrInsufficientBalance):
		response.Error(c, http.StatusBadRequest, "Insufficient coins")
	default:
		response.Error(c, http.StatusInternalServerError, "failed to settle wager")
	}
}

func (h *Handler) handleGameError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		response.Error(c, http.StatusNotFound, "User not found")
	case errors.Is(err, apperrors.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, "Session not found")
	case errors.Is(err, apperrors.ErrNotCashingOut):
		response.Error(c, http.StatusNotFound, "Cashout session not found")
	case errors.Is(err, apperrors.ErrAlreadyInGame):
		response.Error(c, http.StatusBadRequest, "Already in game")
	case errors.Is(err, apperrors.ErrInsufficientBalance):
		response.Error(c, http.StatusBadRequest, "Insufficient coins")
	case errors.Is(err, apperrors.ErrInvalidAmount):
		response.Error(c, http.StatusBadRequest, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, "game operation failed")
	}
}

func getUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(middleware.ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func getDiscordID(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.ContextDiscordIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, id != "" && ok
}
