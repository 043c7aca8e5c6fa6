package server

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"plotweave/pkg/archive"
	"plotweave/pkg/eval"
	"plotweave/pkg/inference"
	"plotweave/pkg/narrative"
	"plotweave/pkg/outline"
	"plotweave/pkg/prompt"
)

// Options wires the server's collaborators. Archive and Embedder are
// optional.
type Options struct {
	Inferencer inference.Inferencer
	Prompts    *prompt.Compiler
	System     string
	Outlines   []outline.Outline
	Embedder   eval.Embedder
	Archive    *archive.SQLite
	Logger     *log.Logger
}

type Server struct {
	Echo       *echo.Echo
	Inferencer inference.Inferencer
	Compiler   *outline.Compiler
	Prompts    *prompt.Compiler
	Writer     *narrative.Writer
	Embedder   eval.Embedder
	Archive    *archive.SQLite
	Logger     *log.Logger
	Ctx        context.Context

	mu       sync.RWMutex
	outlines []outline.Outline
}

func NewServer(ctx context.Context, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.CORS())

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	prompts := opts.Prompts
	if prompts == nil {
		prompts = prompt.NewCompiler(nil, nil)
	}
	writer := narrative.NewWriter(opts.Inferencer)
	if opts.System != "" {
		writer.System = opts.System
	}
	writer.Logger = logger

	s := &Server{
		Echo:       e,
		Inferencer: opts.Inferencer,
		Compiler:   outline.NewCompiler(),
		Prompts:    prompts,
		Writer:     writer,
		Embedder:   opts.Embedder,
		Archive:    opts.Archive,
		Logger:     logger,
		Ctx:        ctx,
		outlines:   slices.Clone(opts.Outlines),
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/", s.handleGetRoot)

	api := s.Echo.Group("/api")
	api.GET("/outlines", s.handleGetOutlines)          // loaded outline vocabulary
	api.POST("/outlines", s.handlePostOutlines)        // solver facts -> compiled outline, added to the pool
	api.POST("/outlines/compile", s.handlePostCompile) // solver facts -> compiled outline
	api.POST("/stories", s.handlePostStories)          // SSE: guided and unguided paragraphs
	api.POST("/evaluate", s.handlePostEvaluate)        // homogeneity scores for a batch
	api.GET("/schema/:name", s.handleGetSchema)
}

// Outlines returns a copy of the outline pool.
func (s *Server) Outlines() []outline.Outline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.outlines)
}

func (s *Server) addOutline(o outline.Outline) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outlines = append(s.outlines, o)
	return len(s.outlines)
}

func (s *Server) randomOutline() (outline.Outline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.outlines) == 0 {
		return nil, false
	}
	return s.outlines[rand.IntN(len(s.outlines))], true
}

func (s *Server) Start(addr string) error {
	s.Logger.Info("server listening", "addr", addr, "outlines", len(s.Outlines()))
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("shutting down server")
	shutDownErr := s.Echo.Shutdown(ctx)
	if s.Archive != nil {
		if err := s.Archive.Close(); err != nil && shutDownErr == nil {
			return err
		}
	}
	return shutDownErr
}
