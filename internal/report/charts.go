package report

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/fogleman/gg"
)

const (
	chartWidth  = 800
	chartHeight = 400
	chartMargin = 50.0
)

var (
	chartBackground = color.White
	chartAxis       = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	chartBar        = color.RGBA{R: 46, G: 117, B: 182, A: 255}
)

// BarChart renders a simple labelled bar chart as PNG
func BarChart(title string, labels []string, values []float64) ([]byte, error) {
	if len(labels) != len(values) {
		return nil, fmt.Errorf("chart %q has %d labels and %d values", title, len(labels), len(values))
	}

	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetColor(chartBackground)
	dc.Clear()

	dc.SetColor(chartAxis)
	dc.DrawStringAnchored(title, chartWidth/2, chartMargin/2, 0.5, 0.5)

	left, bottom := chartMargin, float64(chartHeight)-chartMargin
	right, top := float64(chartWidth)-chartMargin/2, chartMargin
	dc.SetLineWidth(1)
	dc.DrawLine(left, bottom, right, bottom)
	dc.DrawLine(left, bottom, left, top)
	dc.Stroke()

	maxValue := 0.0
	for _, v := range values {
		if v > maxValue {
			maxValue = v
		}
	}
	dc.DrawStringAnchored(fmt.Sprintf("%.0f", maxValue), left-5, top, 1, 0.5)
	dc.DrawStringAnchored("0", left-5, bottom, 1, 0.5)

	if len(values) > 0 {
		slot := (right - left) / float64(len(values))
		barWidth := slot * 0.7
		// label every bar when they fit, otherwise every few
		every := 1 + len(values)/24
		for i, v := range values {
			x := left + slot*float64(i) + (slot-barWidth)/2
			h := 0.0
			if maxValue > 0 {
				h = (bottom - top) * v / maxValue
			}
			dc.SetColor(chartBar)
			dc.DrawRectangle(x, bottom-h, barWidth, h)
			dc.Fill()

			if i%every == 0 {
				dc.SetColor(chartAxis)
				dc.DrawStringAnchored(labels[i], x+barWidth/2, bottom+12, 0.5, 0.5)
			}
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode chart: %w", err)
	}
	return buf.Bytes(), nil
}
