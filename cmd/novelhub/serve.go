package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"novelhub/internal/admin"
	"novelhub/internal/auth"
	"novelhub/internal/catalog"
	"novelhub/internal/grpcserver"
	"novelhub/internal/migrate"
	"novelhub/internal/progress"
	"novelhub/internal/search"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalogue, admin routes, progress streams and gRPC health",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd.Context(), openOpts{})
			if err != nil {
				return err
			}
			defer rt.close()
			return a.serve(cmd.Context(), rt)
		},
	}
	f := cmd.Flags()
	f.String("http-addr", ":8080", "HTTP listen address")
	f.String("grpc-addr", ":9090", "gRPC health listen address")
	f.String("tcp-addr", ":7070", "TCP progress stream listen address")
	mustBind(a.v, cmd, map[string]string{
		"server.http_addr": "http-addr",
		"server.grpc_addr": "grpc-addr",
		"server.tcp_addr":  "tcp-addr",
	})
	return cmd
}

func (a *app) serve(ctx context.Context, rt *runtime) error {
	cache := catalog.NewNovelCache(a.cfg.Cache.TTL)
	reconciler := migrate.NewReconciler(rt.deps(a, cache), a.migrateOptions())

	if a.log.GetLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", func(c *gin.Context) {
		stats := rt.hub.Stats()
		rctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		docs, err := indexCounts(rctx, rt.index)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"index_error": err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"documents":   docs,
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
			"dropped":     stats.Dropped,
		})
	})
	router.GET("/metrics", gin.WrapH(rt.metrics.Handler()))
	router.GET("/ws", progress.WSHandler(rt.hub, a.log))

	catalog.NewHandler(catalog.NewRepo(rt.store, rt.index, cache)).RegisterRoutes(router)

	protected := router.Group("/admin")
	protected.Use(auth.Middleware(a.tokens()))
	admin.NewHandler(rt.syncer, reconciler, rt.hub).RegisterRoutes(protected)

	httpSrv := &http.Server{Addr: a.cfg.Server.HTTPAddr, Handler: router}
	tcpSrv := progress.NewServer(a.cfg.Server.TCPAddr, rt.hub, a.log)
	health := grpcserver.New(a.log,
		func(ctx context.Context) error { return rt.index.DB.PingContext(ctx) },
		func(ctx context.Context) error {
			_, err := rt.store.Genres.Count(ctx)
			return err
		},
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tcpSrv.Run(ctx) })
	g.Go(func() error {
		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", a.cfg.Server.GRPCAddr)
		if err != nil {
			return err
		}
		return health.Serve(ctx, ln, 15*time.Second)
	})
	g.Go(func() error {
		a.log.Info().Str("addr", a.cfg.Server.HTTPAddr).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.log.Info().Msg("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.log.Info().Msg("servers stopped")
	return err
}

// indexCounts reports indexed documents per entity type.
func indexCounts(ctx context.Context, idx *search.Index) (map[string]int, error) {
	out := make(map[string]int, len(search.Entities))
	for _, entity := range search.Entities {
		n, err := idx.CountEntity(ctx, entity)
		if err != nil {
			return nil, err
		}
		out[entity] = n
	}
	return out, nil
}
