package exports

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"shelfstock/pkg/domain"
)

const (
	chartWidth       = 640
	chartHeight      = 320
	chartPadding     = 10
	chartMaxProducts = 10
)

// BuildSalesChart renders a bar chart of sales volume per aggregated product,
// limited to the first ten products in aggregation order. Bars are scaled
// against the highest sold count; an empty catalog yields a blank canvas.
func BuildSalesChart(products []domain.AggregatedProduct) ([]byte, error) {
	if len(products) > chartMaxProducts {
		products = products[:chartMaxProducts]
	}
	img := image.NewRGBA(image.Rect(0, 0, chartWidth, chartHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	maxSold := 0
	for _, p := range products {
		if p.Sold > maxSold {
			maxSold = p.Sold
		}
	}
	if len(products) > 0 && maxSold > 0 {
		plotWidth := chartWidth - 2*chartPadding
		plotHeight := chartHeight - 2*chartPadding
		barWidth := plotWidth / len(products)
		if barWidth < 1 {
			barWidth = 1
		}
		barColor := color.RGBA{R: 0, G: 102, B: 204, A: 255}
		for i, p := range products {
			if p.Sold <= 0 {
				continue
			}
			barHeight := p.Sold * plotHeight / maxSold
			if barHeight < 1 {
				barHeight = 1
			}
			x0 := chartPadding + i*barWidth
			x1 := x0 + barWidth - 2
			if x1 <= x0 {
				x1 = x0 + 1
			}
			y1 := chartHeight - chartPadding
			y0 := y1 - barHeight
			draw.Draw(img, image.Rect(x0, y0, x1, y1), &image.Uniform{barColor}, image.Point{}, draw.Src)
		}
	}

	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
