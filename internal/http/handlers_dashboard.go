package http

import (
	"errors"
	"net/http"

	"finman/internal/aggregate"
	"finman/internal/charts"
	"finman/internal/core"
	"finman/internal/log"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonthQuery(r.URL.Query(), "month")
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	dash, err := s.svc.Dashboard.Dashboard(ctx, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(dash).Write(w)
}

func (s *Server) handleExpenseBreakdown(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonthQuery(r.URL.Query(), "month")
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	breakdown, err := s.svc.Dashboard.CategoryBreakdown(ctx, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if breakdown == nil {
		breakdown = []aggregate.CategoryAmount{}
	}
	NewJSONResponse().Data(breakdown).Write(w)
}

func (s *Server) handleMonthlyComparison(w http.ResponseWriter, r *http.Request) {
	months, err := parseMonthsQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	trend, err := s.svc.Dashboard.Trend(ctx, months)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if trend == nil {
		trend = []aggregate.MonthlyTrend{}
	}
	NewJSONResponse().Data(trend).Write(w)
}

func (s *Server) handleTrendChart(w http.ResponseWriter, r *http.Request) {
	months, err := parseMonthsQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	trend, err := s.svc.Dashboard.Trend(ctx, months)
	if err != nil {
		writeError(w, r, err)
		return
	}
	renderer, err := s.renderer(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writePNG(w, r, "trend")(renderer.TrendPNG(trend))
}

func (s *Server) handleCategoryChart(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonthQuery(r.URL.Query(), "month")
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()

	breakdown, err := s.svc.Dashboard.CategoryBreakdown(ctx, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	renderer, err := s.renderer(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writePNG(w, r, "categories")(renderer.CategoryPiePNG(breakdown))
}

// renderer draws with the symbol of the saved currency.
func (s *Server) renderer(r *http.Request) (*charts.Renderer, error) {
	ctx, cancel := s.storeContext(r)
	defer cancel()

	prefs, err := s.svc.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	return charts.NewRenderer(core.CurrencySymbol(prefs.Currency)), nil
}

// writePNG returns a sink for a render result. Nothing to draw is answered
// with 204 so the page can hide the image.
func (s *Server) writePNG(w http.ResponseWriter, r *http.Request, name string) func([]byte, error) {
	return func(png []byte, err error) {
		if errors.Is(err, charts.ErrNoData) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err != nil {
			log.FromContext(r.Context()).WithComponent(log.ComponentCharts).ErrorContext(r.Context(), "Chart rendering failed",
				log.FieldOperation, log.OpRender,
				"chart", name,
				log.FieldError, err)
			InternalServerError().Write(w)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "private, max-age=60")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}
}
