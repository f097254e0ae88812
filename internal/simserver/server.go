package simserver

import (
	"context"
	"fmt"
	"strings"

	"brilho/internal/models"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options configures the simulator.
type Options struct {
	DBPath    string
	RedisURL  string
	JWTSecret string
	SeedUsers int
}

// Server is the platform simulator: REST API plus push channel.
type Server struct {
	opts Options
	db   *gorm.DB
	rdb  *redis.Client
	hub  *Hub
	app  *fiber.App
}

// New builds the simulator: opens the database, migrates the schema,
// connects Redis when a URL is given and registers all routes.
func New(opts Options) (*Server, error) {
	db, err := gorm.Open(sqlite.Open(opts.DBPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.AutoMigrate(
		&Account{}, &FollowRow{}, &LikeRow{}, &StreamRow{}, &GiftRow{},
		&ReceivedGiftRow{}, &PurchaseRow{}, &ConversationRow{}, &FrameRow{},
		&OwnedFrameRow{}, &HistoryRow{},
	); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	var rdb *redis.Client
	if opts.RedisURL != "" {
		redisOpts, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		rdb = redis.NewClient(redisOpts)
	}

	s := &Server{
		opts: opts,
		db:   db,
		rdb:  rdb,
		hub:  NewHub(rdb),
		app:  fiber.New(fiber.Config{DisableStartupMessage: true}),
	}
	s.setupMiddleware()
	s.setupRoutes()

	if opts.SeedUsers > 0 {
		if err := s.Seed(opts.SeedUsers); err != nil {
			return nil, fmt.Errorf("seeding: %w", err)
		}
	}
	return s, nil
}

// App exposes the fiber app, e.g. for in-process tests.
func (s *Server) App() *fiber.App { return s.app }

// DB exposes the database handle for seeding and tests.
func (s *Server) DB() *gorm.DB { return s.db }

// Hub exposes the push hub, e.g. to inject events in tests.
func (s *Server) Hub() *Hub { return s.hub }

// Listen serves until Shutdown.
func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

// Shutdown stops the HTTP server and closes Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	return err
}

func (s *Server) setupMiddleware() {
	s.app.Use(recover.New())
	s.app.Use(requestid.New())

	prom := fiberprometheus.New("brilho-sim")
	prom.RegisterAt(s.app, "/metrics")
	s.app.Use(prom.Middleware)
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "status": "ok"})
	})

	api := s.app.Group("/api")
	api.Post("/auth/login", s.Login)

	protected := api.Group("", s.authRequired())

	users := protected.Group("/users")
	// Specific routes before the generic /:id route.
	users.Get("/lists/:name", s.ListUsers)
	users.Get("/:id/gifts", s.ReceivedGifts)
	users.Post("/:id/follow", s.Follow)
	users.Delete("/:id/follow", s.Unfollow)
	users.Get("/:id", s.GetUser)
	users.Patch("/:id", s.UpdateUser)

	protected.Post("/photos/:id/like", s.LikePhoto)
	protected.Delete("/photos/:id/like", s.UnlikePhoto)

	protected.Get("/gifts", s.GiftCatalog)
	protected.Get("/conversations", s.ListConversations)

	rooms := protected.Group("/rooms")
	rooms.Get("/:id/access", s.CheckRoomAccess)
	rooms.Post("/:id/join", s.JoinRoom)
	rooms.Post("/:id/leave", s.LeaveRoom)
	rooms.Post("/:id/gifts", s.SendGift)
	rooms.Post("/:id/mic", s.SetMicState)
	rooms.Post("/:id/sound", s.SetSoundState)
	rooms.Post("/:id/pk/end", s.EndPKBattle)
	rooms.Post("/:id/pk/:opponentID", s.StartPKBattle)
	rooms.Post("/:id/kick/:userID", s.KickViewer)

	streams := protected.Group("/streams")
	streams.Get("/", s.ListStreamers)
	streams.Post("/", s.StartStream)
	streams.Post("/history", s.SaveStreamHistory)
	streams.Post("/:id/end", s.EndStream)

	wallet := protected.Group("/wallet")
	wallet.Get("/purchases", s.PurchaseHistory)
	wallet.Post("/withdrawals", s.RequestWithdrawal)

	protected.Post("/frames/:id/purchase", s.PurchaseFrame)

	protected.Post("/channel/ticket", s.IssueTicket)

	// Push channel. Authenticated by a short-lived ticket in the query
	// string, never by the bearer token.
	s.app.Use("/channel", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		userID, err := parseJWT(s.opts.JWTSecret, c.Query("ticket"), "ws")
		if err != nil {
			return fail(c, fiber.StatusUnauthorized, "Invalid or expired channel ticket")
		}
		c.Locals("userID", userID)
		return c.Next()
	})
	s.app.Get("/channel", websocket.New(s.channelLoop))
}

func (s *Server) authRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		tokenString := ""
		if parts := strings.Split(authHeader, " "); len(parts) == 2 && parts[0] == "Bearer" {
			tokenString = parts[1]
		}
		if tokenString == "" {
			return fail(c, fiber.StatusUnauthorized, "Authorization required")
		}
		userID, err := parseJWT(s.opts.JWTSecret, tokenString, "auth")
		if err != nil {
			return fail(c, fiber.StatusUnauthorized, "Invalid or expired token")
		}
		c.Locals("userID", userID)
		return c.Next()
	}
}

func viewerID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

func ok(c *fiber.Ctx, fields fiber.Map) error {
	body := fiber.Map{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	return c.JSON(body)
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": message})
}

func paramUint(c *fiber.Ctx, name string) (uint, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return uint(id), nil
}

// userFor loads an account as seen by the viewer: follow flag and owned
// frames resolved.
func (s *Server) userFor(viewer, id uint) (models.User, error) {
	var acct Account
	if err := s.db.First(&acct, id).Error; err != nil {
		return models.User{}, err
	}
	u := acct.toUser(s.follows(viewer, id))
	s.attachFrames(&u)
	return u, nil
}

func (s *Server) follows(viewerID, targetID uint) bool {
	if viewerID == 0 || viewerID == targetID {
		return false
	}
	var n int64
	s.db.Model(&FollowRow{}).Where("viewer_id = ? AND target_id = ?", viewerID, targetID).Count(&n)
	return n > 0
}

func (s *Server) attachFrames(u *models.User) {
	var owned []OwnedFrameRow
	if err := s.db.Where("user_id = ?", u.ID).Order("frame_id").Find(&owned).Error; err != nil {
		return
	}
	for _, row := range owned {
		u.Frames = append(u.Frames, models.OwnedFrame{FrameID: row.FrameID, ExpiresAt: row.ExpiresAt})
	}
	if u.ActiveFrameID == 0 && len(owned) > 0 {
		u.ActiveFrameID = owned[0].FrameID
	}
}
