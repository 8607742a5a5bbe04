package report

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"time"

	"budgetmail/internal/core"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	panelWidth  = 600
	panelHeight = 500
)

var errNoData = errors.New("no data to plot")

// panel renders one chart panel as PNG bytes.
type panel func(s core.Spending, loc *time.Location, currency string) ([]byte, error)

// TopMerchantsPanel draws the top merchants as a bar chart.
func TopMerchantsPanel(s core.Spending, _ *time.Location, currency string) ([]byte, error) {
	top := TopMerchants(s, TopN)
	if len(top) == 0 {
		return nil, errNoData
	}

	bars := make([]chart.Value, len(top))
	maxY := 0.0
	for i, m := range top {
		v := m.Amount.Units()
		bars[i] = chart.Value{Value: v, Label: truncateLabel(m.Merchant, 14)}
		if v > maxY {
			maxY = v
		}
	}

	graph := chart.BarChart{
		Title:  "Top 5 Merchants",
		Width:  panelWidth,
		Height: panelHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10},
		},
		BarWidth: 60,
		YAxis: chart.YAxis{
			Name:           "Amount Spent (" + currency + ")",
			Range:          yRange(maxY),
			ValueFormatter: amountFormatter,
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render merchants chart: %w", err)
	}
	return buf.Bytes(), nil
}

// DailyTrendPanel draws daily totals ascending by date as a line chart.
func DailyTrendPanel(s core.Spending, loc *time.Location, currency string) ([]byte, error) {
	days := s.Days(loc)
	if len(days) == 0 {
		return nil, errNoData
	}

	xs := make([]time.Time, len(days))
	ys := make([]float64, len(days))
	maxY := 0.0
	for i, d := range days {
		xs[i] = d.Day
		ys[i] = d.Amount.Units()
		if ys[i] > maxY {
			maxY = ys[i]
		}
	}

	// Pad half a day on each side so a single day still has a non-zero x range.
	pad := 12 * time.Hour
	graph := chart.Chart{
		Title:  "Daily Spending Trend",
		Width:  panelWidth,
		Height: panelHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			ValueFormatter: dayFormatter,
			Range: &chart.ContinuousRange{
				Min: chart.TimeToFloat64(xs[0].Add(-pad)),
				Max: chart.TimeToFloat64(xs[len(xs)-1].Add(pad)),
			},
		},
		YAxis: chart.YAxis{
			Name:           "Amount Spent (" + currency + ")",
			Range:          yRange(maxY),
			ValueFormatter: amountFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name: "Daily spending",
				Style: chart.Style{
					StrokeColor: drawing.ColorFromHex("1f77b4"),
					StrokeWidth: 2,
					DotColor:    drawing.ColorFromHex("1f77b4"),
					DotWidth:    3,
				},
				XValues: xs,
				YValues: ys,
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render daily chart: %w", err)
	}
	return buf.Bytes(), nil
}

func yRange(maxY float64) *chart.ContinuousRange {
	if maxY <= 0 {
		maxY = 1
	}
	return &chart.ContinuousRange{Min: 0, Max: maxY * 1.1}
}

func amountFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.0f", f)
	}
	return ""
}

func dayFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return time.Unix(0, int64(f)).Format("Jan 02")
	}
	return ""
}

func truncateLabel(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

// composeSideBySide places PNG panels left to right on a white canvas.
func composeSideBySide(panels [][]byte) ([]byte, error) {
	imgs := make([]image.Image, 0, len(panels))
	width, height := 0, 0
	for _, p := range panels {
		img, err := png.Decode(bytes.NewReader(p))
		if err != nil {
			return nil, fmt.Errorf("decode panel: %w", err)
		}
		b := img.Bounds()
		width += b.Dx()
		if b.Dy() > height {
			height = b.Dy()
		}
		imgs = append(imgs, img)
	}
	if len(imgs) == 0 {
		return nil, errNoData
	}
	if len(imgs) == 1 {
		return panels[0], nil
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	x := 0
	for _, img := range imgs {
		b := img.Bounds()
		draw.Draw(canvas, image.Rect(x, 0, x+b.Dx(), b.Dy()), img, b.Min, draw.Over)
		x += b.Dx()
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}
