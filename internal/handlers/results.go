package handlers

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/Ryuya-dot-com/SelfPacedReading/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"go.uber.org/zap"
)

// ResultsHandler renders a quick-look chart page over the current event log:
// mean reading time per token position and question accuracy per item type.
// The CSV stays the canonical record; this is for eyeballing a finished run.
type ResultsHandler struct {
	log     *zap.Logger
	session *SessionHandler
}

func NewResultsHandler(log *zap.Logger, session *SessionHandler) *ResultsHandler {
	return &ResultsHandler{log: log, session: session}
}

func (h *ResultsHandler) ShowCharts(c *gin.Context) {
	rows := h.session.Machine().Rows()
	if len(rows) == 0 {
		c.String(http.StatusOK, "No data collected yet.")
		return
	}

	page := components.NewPage()
	page.AddCharts(tokenRTChart(rows), accuracyChart(rows))
	if err := page.Render(c.Writer); err != nil {
		h.log.Error("Failed to render results charts", zap.Error(err))
		c.String(http.StatusInternalServerError, "Error rendering charts")
	}
}

func tokenRTChart(rows []models.EventRow) *charts.Line {
	sums := map[int]int64{}
	counts := map[int]int{}
	for _, r := range rows {
		if r.Phase != models.PhaseMain || r.Event != models.EventToken || r.TokenIndex == nil || r.RtMs == nil {
			continue
		}
		sums[*r.TokenIndex] += *r.RtMs
		counts[*r.TokenIndex]++
	}

	positions := make([]int, 0, len(counts))
	for pos := range counts {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	xs := make([]string, 0, len(positions))
	ys := make([]opts.LineData, 0, len(positions))
	for _, pos := range positions {
		xs = append(xs, fmt.Sprintf("%d", pos))
		mean := float64(sums[pos]) / float64(counts[pos])
		ys = append(ys, opts.LineData{Value: mean})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Mean reading time by token position",
			Subtitle: "Main phase token events",
		}),
	)
	line.SetXAxis(xs).AddSeries("mean RT (ms)", ys)
	return line
}

func accuracyChart(rows []models.EventRow) *charts.Bar {
	asked := map[string]int{}
	correct := map[string]int{}
	for _, r := range rows {
		if r.Phase != models.PhaseMain || r.Event != models.EventQuestion || r.Response == nil {
			continue
		}
		asked[r.ItemType]++
		if r.Correct != nil && *r.Correct {
			correct[r.ItemType]++
		}
	}

	types := make([]string, 0, len(asked))
	for t := range asked {
		types = append(types, t)
	}
	sort.Strings(types)

	ys := make([]opts.BarData, 0, len(types))
	for _, t := range types {
		pct := float64(correct[t]) / float64(asked[t]) * 100
		ys = append(ys, opts.BarData{Value: pct})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Question accuracy by item type",
			Subtitle: "Main phase answered questions, percent correct",
		}),
	)
	bar.SetXAxis(types).AddSeries("accuracy (%)", ys)
	return bar
}
