package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/airsense-io/csi-sense/internal/storage"
)

const (
	dpi            = 120.0
	fontSize       = 12.0
	tickMarkHeight = 5

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 80
	defaultBottomBorder = 40
	defaultRightBorder  = 40
)

// RenderConfig holds the visualization options.
type RenderConfig struct {
	ColorTheme ColorTheme
	CellWidth  int // Horizontal pixels per subcarrier
	FontSize   float64
}

// HeatmapRenderer draws a capture session as a subcarrier-by-time amplitude
// heatmap with axis annotations.
type HeatmapRenderer struct {
	config RenderConfig
}

// NewHeatmapRenderer creates a renderer with the given configuration.
func NewHeatmapRenderer(config RenderConfig) *HeatmapRenderer {
	if config.CellWidth < 1 {
		config.CellWidth = 1
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	return &HeatmapRenderer{config: config}
}

// Render creates an annotated image of the heatmap data.
func (r *HeatmapRenderer) Render(data *HeatmapData, session *storage.Session) (*image.RGBA, error) {
	gridWidth := data.Width * r.config.CellWidth

	fullWidth := gridWidth + defaultLeftBorder + defaultRightBorder
	fullHeight := data.Height + defaultTopBorder + defaultBottomBorder
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	area := image.Rect(
		defaultLeftBorder,
		defaultTopBorder,
		defaultLeftBorder+gridWidth,
		defaultTopBorder+data.Height,
	)

	mapper := NewColorMapper(r.config.ColorTheme, data.Bounds())

	ann, err := newAnnotator(r.config.FontSize)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	if err = ann.annotate(img, data, session, r.config.CellWidth); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	r.renderGrid(img, area, data, mapper)

	return img, nil
}

// renderGrid draws the amplitude cells using the color map.
func (r *HeatmapRenderer) renderGrid(img *image.RGBA, area image.Rectangle, data *HeatmapData, mapper *ColorMapper) {
	for y, row := range data.Rows {
		imgY := area.Min.Y + y
		for x, amplitude := range row {
			c := mapper.Color(amplitude)
			for dx := 0; dx < r.config.CellWidth; dx++ {
				img.SetRGBA(area.Min.X+x*r.config.CellWidth+dx, imgY, c)
			}
		}
	}
}

type annotator struct {
	context  *freetype.Context
	fontFace font.Face
}

func newAnnotator(size float64) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(size)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    size,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, data *HeatmapData, session *storage.Session, cellWidth int) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawSubcarrierScale(img, data, cellWidth); err != nil {
		return fmt.Errorf("drawing subcarrier scale: %w", err)
	}
	if err := a.drawTimeScale(img, data); err != nil {
		return fmt.Errorf("drawing time scale: %w", err)
	}
	if err := a.drawInfoBar(img, data, session); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}

	return nil
}

func (a *annotator) drawSubcarrierScale(img *image.RGBA, data *HeatmapData, cellWidth int) error {
	step := niceSubcarrierStep(data.Width)

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := defaultTopBorder - fontHeight/2

	for sc := 0; sc < data.Width; sc += step {
		x := defaultLeftBorder + sc*cellWidth + cellWidth/2

		for y := defaultTopBorder - tickMarkHeight; y < defaultTopBorder; y++ {
			img.Set(x, y, color.Black)
		}

		label := fmt.Sprintf("%d", sc)
		width := font.MeasureString(a.fontFace, label)
		if _, err := a.context.DrawString(label, freetype.Pt(x-(width.Round()/2), textY)); err != nil {
			return fmt.Errorf("drawing subcarrier label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, data *HeatmapData) error {
	if data.Height == 0 {
		return nil
	}

	// Rows map 1:1 onto pixels, so the label step is a row count.
	step := data.Height / 8
	if step < 1 {
		step = 1
	}

	msPerRow := float64(data.DurationMS()) / float64(data.Height)

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	for y := 0; y < data.Height; y += step {
		imgY := y + defaultTopBorder

		for x := defaultLeftBorder - tickMarkHeight; x < defaultLeftBorder; x++ {
			img.Set(x, imgY, color.Black)
		}

		textY := imgY + fontHeight/2 - metrics.Descent.Round()

		offset := time.Duration(float64(y)*msPerRow) * time.Millisecond
		label := formatOffset(offset)
		if _, err := a.context.DrawString(label, freetype.Pt(10, textY)); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, data *HeatmapData, session *storage.Session) error {
	bounds := data.Bounds()

	var sb strings.Builder
	if session.Label != "" {
		sb.WriteString(fmt.Sprintf("Label: %s; ", session.Label))
	}
	sb.WriteString(fmt.Sprintf("Device: %s (%s); ", session.DeviceID, session.DeviceType))
	sb.WriteString(fmt.Sprintf("Samples: %s over %s; ",
		humanize.Comma(int64(data.Height)),
		formatOffset(time.Duration(data.DurationMS())*time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Amplitude: %.1f - %.1f", bounds.Min, bounds.Max))

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := img.Bounds().Max.Y - (defaultBottomBorder-fontHeight)/2 - metrics.Descent.Round()

	if _, err := a.context.DrawString(sb.String(), freetype.Pt(defaultLeftBorder, textY)); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}

	return nil
}

// niceSubcarrierStep picks a label step that keeps roughly 8-13 labels on
// the horizontal axis.
func niceSubcarrierStep(width int) int {
	for _, step := range []int{1, 2, 4, 8, 16, 32} {
		if width/step <= 13 {
			return step
		}
	}
	return 64
}

func formatOffset(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	case d >= time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}
