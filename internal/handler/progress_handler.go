package handler

import (
	"errors"
	"strconv"

	"ai-bookchat-be/internal/pkg/logger"
	"ai-bookchat-be/internal/pkg/serverutils"
	"ai-bookchat-be/internal/repository/specification"
	"ai-bookchat-be/internal/repository/unitofwork"
	"ai-bookchat-be/pkg/progress"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ProgressHandler streams embedding progress for a single book over a
// websocket. Clients connect with ?token=<jwt>&book_id=<id>; the first frame
// is the latest known state, then live events follow until a terminal one.
type ProgressHandler struct {
	bus        *progress.Bus
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewProgressHandler(bus *progress.Bus, uowFactory unitofwork.RepositoryFactory, log logger.ILogger) *ProgressHandler {
	return &ProgressHandler{
		bus:        bus,
		uowFactory: uowFactory,
		logger:     log,
	}
}

func (h *ProgressHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/progress", h.ServeWs)
}

func (h *ProgressHandler) ServeWs(c *fiber.Ctx) error {
	userID, err := wsUserID(c)
	if err != nil {
		h.logger.Warn("ProgressHandler", "Rejected websocket handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	bookID, err := strconv.ParseInt(c.Query("book_id"), 10, 64)
	if err != nil || bookID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing or invalid book_id"})
	}

	// Progress is only visible to the book's owner.
	uow := h.uowFactory.NewUnitOfWork(c.UserContext())
	book, err := uow.BookRepository().FindOne(c.UserContext(),
		specification.ByBookID{BookID: bookID},
		specification.UserOwnedBy{UserID: userID},
	)
	if err != nil {
		return err
	}
	if book == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "book not found"})
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.stream(conn, bookID, userID)
	})(c)
}

func (h *ProgressHandler) stream(conn *websocket.Conn, bookID int64, userID uuid.UUID) {
	sub := h.bus.Subscribe(bookID)
	defer h.bus.Unsubscribe(sub.ID)

	h.logger.Info("ProgressHandler", "Progress stream opened", map[string]interface{}{
		"book_id": bookID,
		"user_id": userID,
	})

	// Drain reads so we notice when the peer goes away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
			if evt.Terminal() {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		case <-closed:
			return
		}
	}
}

// wsUserID authenticates a websocket handshake. The token comes from the
// "token" query param or, for non-browser clients, the Authorization header.
func wsUserID(c *fiber.Ctx) (uuid.UUID, error) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return uuid.Nil, errors.New("missing token")
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return serverutils.JwtSecret(), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid token claims")
	}
	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, errors.New("token missing user_id")
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, errors.New("invalid user id in token")
	}
	return userID, nil
}
