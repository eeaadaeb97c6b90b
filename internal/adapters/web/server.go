package web

// server.go — superficie HTTP fina sobre el motor: recibe ventana/filtros,
// corre la operación y devuelve el reporte como JSON. Toda la lógica vive en
// los paquetes del motor; acá solo hay binding, validación y status codes.

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/alejandrodnm/repricer/internal/adapters/snapshot"
	"github.com/alejandrodnm/repricer/internal/domain"
	"github.com/alejandrodnm/repricer/internal/ports"
	"github.com/alejandrodnm/repricer/internal/regression"
	"github.com/alejandrodnm/repricer/internal/whatif"
)

// Server expone regression y what-if por HTTP.
type Server struct {
	extractors map[string]ports.Extractor
	comparator *regression.Comparator
	analyzer   *whatif.Analyzer
}

// NewServer crea el servidor con los extractors por schema ("current",
// "legacy") y los runners del motor.
func NewServer(extractors map[string]ports.Extractor, comparator *regression.Comparator, analyzer *whatif.Analyzer) *Server {
	return &Server{extractors: extractors, comparator: comparator, analyzer: analyzer}
}

// Handler arma el router con CORS para el dashboard.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.POST("/regression", s.runRegression)
	api.POST("/regression/products", s.runProducts)
	api.POST("/whatif", s.runWhatIf)
	api.POST("/snapshot/export", s.exportSnapshot)

	return cors.Default().Handler(router)
}

// Run sirve hasta que el contexto se cancele.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	slog.Info("web server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) runRegression(c *gin.Context) {
	recs, ok := s.extractBatch(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.comparator.Run(c.Request.Context(), recs))
}

func (s *Server) runProducts(c *gin.Context) {
	recs, ok := s.extractBatch(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.comparator.RunProducts(c.Request.Context(), recs))
}

func (s *Server) runWhatIf(c *gin.Context) {
	var req WhatIfRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err)
		return
	}
	recs, ok := s.extract(c, req.BatchRequest)
	if !ok {
		return
	}
	report, err := s.analyzer.Run(c.Request.Context(), recs, req.Override)
	if err != nil {
		// Override vacío u otro input malformado: bloquea, no defaultea.
		badRequest(c, "INVALID_OVERRIDE", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) exportSnapshot(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err)
		return
	}
	recs, ok := s.extract(c, req.BatchRequest)
	if !ok {
		return
	}
	if err := snapshot.Write(req.Path, recs); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{Code: "EXPORT_FAILED", Message: err.Error()},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": req.Path, "records": len(recs)})
}

// extractBatch es el camino común: bind + extract.
func (s *Server) extractBatch(c *gin.Context) ([]domain.Record, bool) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_REQUEST", err)
		return nil, false
	}
	return s.extract(c, req)
}

func (s *Server) extract(c *gin.Context, req BatchRequest) ([]domain.Record, bool) {
	schema := req.Schema
	if schema == "" {
		schema = "current"
	}
	extractor, ok := s.extractors[schema]
	if !ok {
		badRequestMsg(c, "INVALID_SCHEMA", "schema must be \"current\" or \"legacy\"")
		return nil, false
	}

	w, err := req.Window()
	if err != nil {
		badRequest(c, "INVALID_WINDOW", err)
		return nil, false
	}

	recs, err := extractor.Extract(c.Request.Context(), w, req.Filters())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{Code: "EXTRACTION_FAILED", Message: err.Error()},
		})
		return nil, false
	}
	return recs, true
}

func badRequest(c *gin.Context, code string, err error) {
	badRequestMsg(c, code, err.Error())
}

func badRequestMsg(c *gin.Context, code, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: msg},
	})
}
