package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/HammerMeetNail/tville/internal/models"
)

// HouseCardStats are the counters printed on a house card.
type HouseCardStats struct {
	Friends      int
	Scraps       int
	LibraryItems int
}

var (
	fontOnce      sync.Once
	parsedGoFont  *opentype.Font
	parsedGoError error
)

// RenderHouseCardPNG draws a shareable 1200x630 card for a profile: the house
// name, its address, the motto and a row of counters.
func RenderHouseCardPNG(profile models.Profile, stats HouseCardStats) ([]byte, error) {
	const width = 1200
	const height = 630
	const padding = 48
	const swatchSize = 160
	const borderWidth = 3

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{0xFA, 0xF9, 0xF7, 0xFF}}, image.Point{}, draw.Src)

	headerFace, err := newFontFace(48)
	if err != nil {
		return nil, err
	}
	defer func() { _ = headerFace.Close() }()

	bodyFace, err := newFontFace(26)
	if err != nil {
		return nil, err
	}
	defer func() { _ = bodyFace.Close() }()

	statsFace, err := newFontFace(22)
	if err != nil {
		return nil, err
	}
	defer func() { _ = statsFace.Close() }()

	swatch := image.Rect(padding, padding, padding+swatchSize, padding+swatchSize)
	draw.Draw(img, swatch, &image.Uniform{C: parseHexColor(profile.HouseColor, color.RGBA{0xF5, 0xD6, 0xA8, 0xFF})}, image.Point{}, draw.Src)
	drawBorder(img, swatch, borderWidth, color.RGBA{0x3A, 0x3A, 0x3A, 0xFF})

	textLeft := swatch.Max.X + padding
	textWidth := width - textLeft - padding
	name := clampLines(headerFace, []string{profile.CasaName}, 1, textWidth)
	drawText(img, headerFace, textLeft, padding+48, strings.Join(name, ""), color.RGBA{0x2D, 0x2D, 0x2D, 0xFF})

	if address := houseAddress(profile); address != "" {
		drawText(img, bodyFace, textLeft, padding+96, address, color.RGBA{0x6B, 0x6B, 0x6B, 0xFF})
	}
	if profile.HouseStyle != "" {
		drawText(img, bodyFace, textLeft, padding+136, strings.ToUpper(profile.HouseStyle[:1])+profile.HouseStyle[1:], color.RGBA{0x6B, 0x6B, 0x6B, 0xFF})
	}

	if motto := strings.TrimSpace(profile.HouseMotto); motto != "" {
		mottoRect := image.Rect(padding, swatch.Max.Y+padding, width-padding, height-140)
		lines := wrapText(bodyFace, "“"+motto+"”", mottoRect.Dx())
		lines = clampLines(bodyFace, lines, 4, mottoRect.Dx())
		drawWrappedText(img, bodyFace, mottoRect, lines, color.RGBA{0x2D, 0x2D, 0x2D, 0xFF})
	}

	statsLine := fmt.Sprintf("%s - %s - %s - %s",
		pluralize(stats.Friends, "friend"),
		pluralize(profile.VisitCount, "visit"),
		pluralize(stats.Scraps, "scrap"),
		pluralize(stats.LibraryItems, "library item"),
	)
	statsRect := image.Rect(padding, height-120, width-padding, height-padding)
	draw.Draw(img, statsRect, &image.Uniform{C: color.RGBA{0xF1, 0xF0, 0xEB, 0xFF}}, image.Point{}, draw.Src)
	drawBorder(img, statsRect, borderWidth, color.RGBA{0x3A, 0x3A, 0x3A, 0xFF})
	drawWrappedText(img, statsFace, statsRect, []string{statsLine}, color.RGBA{0x1B, 0x4D, 0x3E, 0xFF})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func houseAddress(profile models.Profile) string {
	street := strings.TrimSpace(profile.StreetName)
	number := strings.TrimSpace(profile.HouseNumber)
	switch {
	case street != "" && number != "":
		return number + " " + street
	default:
		return street + number
	}
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}

// parseHexColor reads "#rrggbb"; anything else yields fallback.
func parseHexColor(s string, fallback color.RGBA) color.RGBA {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return fallback
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fallback
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}
}

func newFontFace(size float64) (*opentype.Face, error) {
	fontOnce.Do(func() {
		parsedGoFont, parsedGoError = opentype.Parse(goregular.TTF)
	})
	if parsedGoError != nil {
		return nil, fmt.Errorf("parse font: %w", parsedGoError)
	}
	face, err := opentype.NewFace(parsedGoFont, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("load font face: %w", err)
	}
	otFace, ok := face.(*opentype.Face)
	if !ok {
		return nil, fmt.Errorf("load font face: unexpected type")
	}
	return otFace, nil
}

func drawText(img draw.Image, face font.Face, x, y int, text string, clr color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(clr),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func drawBorder(img draw.Image, rect image.Rectangle, width int, clr color.Color) {
	border := image.NewUniform(clr)
	draw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+width), border, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(rect.Min.X, rect.Max.Y-width, rect.Max.X, rect.Max.Y), border, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+width, rect.Max.Y), border, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(rect.Max.X-width, rect.Min.Y, rect.Max.X, rect.Max.Y), border, image.Point{}, draw.Src)
}

func wrapText(face font.Face, text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{}
	}

	d := &font.Drawer{Face: face}
	lines := []string{}
	current := words[0]

	for _, word := range words[1:] {
		test := current + " " + word
		if d.MeasureString(test).Ceil() <= maxWidth {
			current = test
			continue
		}
		lines = append(lines, current)
		current = word
	}
	lines = append(lines, current)
	return lines
}

// clampLines keeps at most maxLines lines and shortens the last one with an
// ellipsis until it fits maxWidth.
func clampLines(face font.Face, lines []string, maxLines int, maxWidth int) []string {
	d := &font.Drawer{Face: face}
	truncated := len(lines) > maxLines
	if truncated {
		lines = lines[:maxLines]
	}
	if len(lines) == 0 {
		return lines
	}
	last := lines[len(lines)-1]
	if !truncated && d.MeasureString(last).Ceil() <= maxWidth {
		return lines
	}

	ellipsis := "..."
	runes := []rune(last)
	for d.MeasureString(string(runes)+ellipsis).Ceil() > maxWidth && len(runes) > 0 {
		runes = runes[:len(runes)-1]
	}
	lines[len(lines)-1] = strings.TrimSpace(string(runes)) + ellipsis
	return lines
}

func drawWrappedText(img draw.Image, face font.Face, rect image.Rectangle, lines []string, clr color.Color) {
	if len(lines) == 0 {
		return
	}
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	textHeight := lineHeight * len(lines)
	startY := rect.Min.Y + (rect.Dy()-textHeight)/2 + metrics.Ascent.Ceil()

	for i, line := range lines {
		lineWidth := font.MeasureString(face, line).Ceil()
		x := rect.Min.X + (rect.Dx()-lineWidth)/2
		y := startY + i*lineHeight
		drawText(img, face, x, y, line, clr)
	}
}
