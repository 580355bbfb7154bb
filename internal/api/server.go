// Package api expone por HTTP (gin) los datos de referencia: feriados,
// series CER/BADLAR/TAMAR y calculadoras guardadas.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmtruffa/cupones/internal/model"
	"github.com/jmtruffa/cupones/internal/store"
)

// Repository es lo que el servidor necesita de la base.
type Repository interface {
	Ping(ctx context.Context) error
	QueryHolidays(ctx context.Context, q store.Query) (store.Page[model.Holiday], error)
	QuerySeries(ctx context.Context, s model.Series, q store.Query) (store.Page[model.Observation], error)
	UpsertHolidays(ctx context.Context, hs []model.Holiday) (int, error)
	UpsertSeries(ctx context.Context, s model.Series, obs []model.Observation) (int, error)
	InsertPreset(ctx context.Context, p model.Preset) (model.PresetSummary, error)
	ListPresets(ctx context.Context) ([]model.PresetSummary, error)
	GetPreset(ctx context.Context, id int64) (model.Preset, error)
}

// Syncer trae feriados de la fuente externa y los guarda.
type Syncer interface {
	Sync(ctx context.Context, from, to time.Time) (int, error)
}

type Options struct {
	// CORSOrigins vacío o con "*" habilita cualquier origen.
	CORSOrigins []string
	// Now se usa para la ventana por defecto de la sincronización.
	Now func() time.Time
}

type Server struct {
	repo   Repository
	sync   Syncer
	log    *zap.Logger
	now    func() time.Time
	engine *gin.Engine
}

// New arma el servidor. repo y sync pueden ser nil: las rutas que los
// necesitan responden 503.
func New(repo Repository, sync Syncer, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{repo: repo, sync: sync, log: log, now: now}
	s.engine = s.routes(opts.CORSOrigins)
	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", "Accept")
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func (s *Server) routes(origins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log), cors.New(corsConfig(origins)))

	r.GET("/health", s.health)

	api := r.Group("/api")

	feriados := api.Group("/feriados")
	feriados.GET("/bd", s.needsRepo, s.getHolidays)
	feriados.POST("/bd", s.needsRepo, s.postHolidays)
	feriados.POST("/uno", s.needsRepo, s.postHoliday)
	feriados.POST("/sincronizar", s.postSync)

	for _, series := range model.AllSeries {
		g := api.Group("/" + string(series))
		g.GET("/bd", s.needsRepo, s.getSeries(series))
		g.POST("/bd", s.needsRepo, s.postSeries(series))
	}

	calc := api.Group("/calculadoras")
	calc.GET("", s.needsRepo, s.listPresets)
	calc.POST("/guardar", s.needsRepo, s.savePreset)
	calc.GET("/:id", s.needsRepo, s.getPreset)

	return r
}

// Handler devuelve el http.Handler, útil para tests.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe atiende en addr hasta que ctx se cancela y luego cierra
// ordenadamente.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("servidor escuchando", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("cerrando servidor")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if status >= http.StatusInternalServerError {
			log.Warn("request", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}

func (s *Server) health(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "no configurada"})
		return
	}
	if err := s.repo.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "database": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "ok"})
}
