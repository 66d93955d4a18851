package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/radboard/internal/auth"
	"github.com/radboard/internal/board"
	"github.com/radboard/internal/config"
	"github.com/radboard/internal/handler"
	"github.com/radboard/internal/logger"
	"github.com/radboard/internal/media"
	"github.com/radboard/internal/middleware"
	"github.com/radboard/internal/push"
	"github.com/radboard/internal/repository"
	"github.com/radboard/internal/startup"
	"github.com/radboard/internal/storage"
	"github.com/radboard/internal/storage/memory"
	redisstore "github.com/radboard/internal/storage/redis"
	"github.com/radboard/internal/ws"
	"github.com/radboard/migrations"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL and in-memory sessions (no external services required)")
	flag.Parse()

	logger.Info("starting board API service")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "")
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}
	logger.Info("database connected, migrations applied")

	sessions := openSessionStore(cfg, *dev)
	defer sessions.Close()

	userRepo := repository.NewUserRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	tagRepo := repository.NewTagRepository(pool)
	reactRepo := repository.NewReactionRepository(pool)

	gateway := media.NewGateway(
		media.NewStabilityClient(cfg.Media.StabilityAPIKey),
		media.NewLumaClient(cfg.Media.LumaAPIKey),
		cfg.Media.PollDeadline,
	)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(cfg.MaxWSConnections)

	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	vapidKeys, err := push.EnsureVAPIDKeys("")
	if err != nil {
		logger.Errorf("vapid keys: %v (web push отключён)", err)
	} else {
		cfg.PushVAPIDPublicKey = vapidKeys.PublicKey
	}
	var notifier board.PushNotifier
	if sender := push.NewSender(vapidKeys, sessions); sender != nil {
		notifier = sender
	}

	boardSvc := board.NewService(msgRepo, commentRepo, tagRepo, reactRepo, userRepo, gateway, hub, notifier)
	authSvc := auth.NewService(userRepo, sessions, cfg.SessionTTL)

	boardH := handler.NewBoardHandler(boardSvc)
	authH := handler.NewAuthHandler(authSvc, boardSvc, cfg.SessionTTL)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)
	pushH := handler.NewPushHandler(sessions, cfg.PushVAPIDPublicKey)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	// Не сжимать WebSocket — иначе ResponseWriter не реализует http.Hijacker и upgrade даёт 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.SessionAuth(sessions))
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Session-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })

	// Публичная часть: лента, теги, профили, подключение к live-ленте.
	r.Get("/", boardH.Feed)
	r.Get("/tag/{name}", boardH.TagFeed)
	r.Get("/profile/{username}", authH.Profile)
	r.Get("/push/vapid-public", pushH.VAPIDPublic)
	r.Get("/ws", wsH.ServeWS)

	r.Post("/register", authH.Register)
	r.Post("/login", authH.Login)
	r.Post("/logout", authH.Logout)

	// Мутации и генерация медиа — только для залогиненных.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/post_message", boardH.PostMessage)
		r.Post("/post_comment/{messageID}", boardH.PostComment)
		r.Get("/add_reaction/{messageID}/{reaction}", boardH.AddReaction)
		r.Post("/generate_image", boardH.GenerateImage)
		r.Post("/generate_video", boardH.GenerateVideo)
		r.Get("/check_video_status/{generationID}", boardH.CheckVideoStatus)
		r.Post("/update_video_url", boardH.UpdateVideoURL)
		r.Post("/push/subscribe", pushH.Subscribe)
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

// openSessionStore подключается к Redis; в -dev (или при недоступном Redis
// в -dev) используется in-memory хранилище. Вне -dev недоступный Redis
// фатален: сессии не должны молча жить в памяти одного процесса.
func openSessionStore(cfg *config.Config, dev bool) storage.SessionStore {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := redisstore.New(ctx, cfg.Redis.URL)
	if err == nil {
		logger.Info("redis connected")
		return store
	}
	if !dev {
		logger.Errorf("redis: %v", err)
		os.Exit(1)
	}
	logger.Errorf("redis недоступен (%v), используется in-memory хранилище сессий", err)
	return memory.New()
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := migrations.Files.ReadDir(".")
	if err != nil {
		logger.Errorf("read migrations: %v", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		data, err := migrations.Files.ReadFile(e.Name())
		if err != nil {
			logger.Errorf("read migration %s: %v", e.Name(), err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", e.Name(), err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "radboard"
		password = "radboard_secret"
		database = "radboard"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
