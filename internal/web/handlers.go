package web

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"macropulse/internal/dashboard"
	"macropulse/internal/phillips"
)

// loadingRefreshSeconds is how soon a page rendered mid-load asks the browser to retry.
const loadingRefreshSeconds = 5

var validate = newValidator()

// newValidator adds the "finite" tag: the trimmed field parses as a finite
// float, so number-input forms like ".5" or "1e0" are accepted.
func newValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
		return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	if err != nil {
		panic(err)
	}
	return v
}

type predictForm struct {
	UnemploymentRate string `form:"unemployment_rate" validate:"omitempty,max=32,finite"`
}

func (s *Server) handleDashboard(c echo.Context) error {
	ctx := c.Request().Context()

	page := dashboard.NewPage(s.source, s.logger, s.pageOpts...)
	page.Mount(ctx)
	defer page.Unmount()

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.RenderWait)
	defer cancel()
	if err := page.Wait(waitCtx); err != nil {
		s.logger.Debug().Err(err).Msg("rendering dashboard before load settled")
	}

	view := page.View()
	data := dashboardData{View: view, RefreshSeconds: loadingRefreshSeconds}
	if view.Chart.Show {
		data.ChartSVG = inflationSVG(view.Chart.History, s.logger)
	}
	return c.Render(http.StatusOK, "dashboard.html", data)
}

func (s *Server) handlePhillips(c echo.Context) error {
	ctx := c.Request().Context()

	panel := phillips.NewPanel(s.source, s.logger, s.panelOpts...)
	panel.Mount(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.RenderWait)
	defer cancel()
	_ = panel.WaitLoaded(waitCtx)

	return s.renderPhillips(c, panel, "")
}

func (s *Server) handlePredict(c echo.Context) error {
	ctx := c.Request().Context()

	var form predictForm
	if err := c.Bind(&form); err != nil {
		s.logger.Warn().Err(err).Msg("bind predict form")
	}

	panel := phillips.NewPanel(s.source, s.logger, s.panelOpts...)
	panel.Mount(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.RenderWait)
	defer cancel()

	if err := validate.StructCtx(waitCtx, form); err != nil {
		s.logger.Warn().Err(err).Str("input", form.UnemploymentRate).Msg("ignoring invalid predict form")
	} else if err := panel.Submit(waitCtx, form.UnemploymentRate); err != nil && !errors.Is(err, phillips.ErrSuperseded) {
		// already logged by the panel; the page shows no prediction
		s.logger.Debug().Err(err).Msg("predict submission failed")
	}
	_ = panel.WaitLoaded(waitCtx)

	return s.renderPhillips(c, panel, form.UnemploymentRate)
}

func (s *Server) renderPhillips(c echo.Context, panel *phillips.Panel, input string) error {
	view := panel.View()
	return c.Render(http.StatusOK, "phillips.html", phillipsData{
		View:     view,
		ChartSVG: phillipsSVG(view.Series(), s.logger),
		Input:    input,
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
