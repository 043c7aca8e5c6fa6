package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/segmentio/ksuid"

	"plotweave/pkg/archive"
	"plotweave/pkg/batch"
	"plotweave/pkg/outline"
	"plotweave/pkg/prompt"
	"plotweave/pkg/schema"
	"plotweave/pkg/utils"
)

type storyDone struct {
	Job      batch.Job `json:"job"`
	Guided   []string  `json:"guided"`
	Unguided []string  `json:"unguided"`
	Usable   bool      `json:"usable"`
}

type storyError struct {
	Mode  schema.Mode `json:"mode"`
	Scene *int        `json:"scene,omitempty"`
	Error string      `json:"error"`
}

// POST /api/stories
func (s *Server) handlePostStories(c echo.Context) error {
	var req schema.StoryRequest
	if err := c.Bind(&req); err != nil {
		s.Logger.Warn("invalid JSON in /api/stories", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	req.Premise = strings.TrimSpace(req.Premise)
	if req.Premise == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "premise is required")
	}

	var o outline.Outline
	if len(req.Outline) > 0 {
		for _, l := range req.Outline {
			label := outline.Label(l)
			if !label.Valid() {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid label "+l)
			}
			o = append(o, label)
		}
	} else {
		var ok bool
		if o, ok = s.randomOutline(); !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "no outline given and none loaded")
		}
	}
	// reject unknown labels before the stream starts
	if _, err := s.Prompts.Plan(o, req.Premise); err != nil {
		var missing *prompt.MissingInstructionError
		if errors.As(err, &missing) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return err
	}

	w, err := utils.NewSSEWriter(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer w.Close()

	job := batch.Job{ID: ksuid.New().String(), Premise: req.Premise, Outline: o}
	job.BatchID = job.ID
	s.Logger.Info("starting story", "job", job.ID, "premise", job.Premise, "scenes", len(o))

	runner := &batch.Runner{
		Compiler: s.Prompts,
		Writer:   s.Writer,
		Logger:   s.Logger,
		OnScene: func(job batch.Job, mode schema.Mode, in schema.Instruction, paragraph string) {
			if err := w.Event("scene", schema.SceneEvent{Mode: mode, Scene: in.Scene, Label: in.Label, Paragraph: paragraph}); err != nil {
				s.Logger.Warn("SSE write error", "error", err)
			}
		},
	}
	pair := runner.RunOne(c.Request().Context(), job)
	if cancelled(c) {
		s.Logger.Warn("story cancelled by client", "job", job.ID)
		return nil
	}

	for _, side := range []struct {
		mode schema.Mode
		err  error
	}{{schema.Guided, pair.GuidedErr}, {schema.Unguided, pair.UnguidedErr}} {
		if side.err == nil {
			continue
		}
		ev := storyError{Mode: side.mode, Error: side.err.Error()}
		if scene, ok := archive.FailedScene(side.err); ok {
			ev.Scene = &scene
		}
		_ = w.Event("error", ev)
	}

	if s.Archive != nil {
		if err := s.Archive.SavePair(s.Ctx, pair); err != nil {
			s.Logger.Warn("failed archiving story", "job", job.ID, "error", err)
		}
	}

	return w.Event("done", storyDone{
		Job:      job,
		Guided:   pair.Guided.Paragraphs,
		Unguided: pair.Unguided.Paragraphs,
		Usable:   pair.Usable(),
	})
}

func cancelled(c echo.Context) bool {
	select {
	case <-c.Request().Context().Done():
		return true
	default:
		return false
	}
}
