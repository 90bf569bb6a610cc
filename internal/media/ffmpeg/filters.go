package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"clipforge/internal/jobs"
)

// anchorMargin is the fixed pixel inset for named anchor positions.
const anchorMargin = 10

// overlayPosition renders a Position into x/y expressions for the
// overlay filter, where main_w/main_h name the base frame and
// overlay_w/overlay_h the composited element.
//
// Coordinate pairs within [0,100] on both axes are percentages of the
// available placement area, so {x:50,y:50} lands dead center. Anything
// larger is a pixel offset.
func overlayPosition(pos jobs.Position) (string, string) {
	if pos.Coords {
		if coordsArePercent(pos) {
			x := fmt.Sprintf("(main_w-overlay_w)*%s/100", formatNumber(pos.X))
			y := fmt.Sprintf("(main_h-overlay_h)*%s/100", formatNumber(pos.Y))
			return x, y
		}
		return formatNumber(pos.X), formatNumber(pos.Y)
	}

	var x, y string
	switch anchorColumn(pos.Anchor) {
	case "left":
		x = strconv.Itoa(anchorMargin)
	case "right":
		x = fmt.Sprintf("main_w-overlay_w-%d", anchorMargin)
	default:
		x = "(main_w-overlay_w)/2"
	}
	switch anchorRow(pos.Anchor) {
	case "top":
		y = strconv.Itoa(anchorMargin)
	case "bottom":
		y = fmt.Sprintf("main_h-overlay_h-%d", anchorMargin)
	default:
		y = "(main_h-overlay_h)/2"
	}
	return x, y
}

// drawtextPosition renders one caption line's placement. Lines stack
// downward from the block anchor with the configured spacing; each
// line centers independently, which is what makes multi-line captions
// look balanced.
func drawtextPosition(pos jobs.Position, lineIndex, lineCount, fontSize, lineSpacing int) (string, string) {
	step := fontSize + lineSpacing
	blockHeight := lineCount*fontSize + (lineCount-1)*lineSpacing
	offset := lineIndex * step

	if pos.Coords {
		if coordsArePercent(pos) {
			x := fmt.Sprintf("(w-text_w)*%s/100", formatNumber(pos.X))
			y := fmt.Sprintf("(h-text_h)*%s/100", formatNumber(pos.Y))
			if offset > 0 {
				y += "+" + strconv.Itoa(offset)
			}
			return x, y
		}
		x := formatNumber(pos.X)
		y := formatNumber(pos.Y)
		if offset > 0 {
			y += "+" + strconv.Itoa(offset)
		}
		return x, y
	}

	var x string
	switch anchorColumn(pos.Anchor) {
	case "left":
		x = strconv.Itoa(anchorMargin)
	case "right":
		x = fmt.Sprintf("w-text_w-%d", anchorMargin)
	default:
		x = "(w-text_w)/2"
	}

	var y string
	switch anchorRow(pos.Anchor) {
	case "top":
		y = strconv.Itoa(anchorMargin + offset)
	case "bottom":
		y = fmt.Sprintf("h-%d", blockHeight+anchorMargin-offset)
	default:
		y = fmt.Sprintf("(h-%d)/2", blockHeight)
		if offset > 0 {
			y += "+" + strconv.Itoa(offset)
		}
	}
	return x, y
}

func coordsArePercent(pos jobs.Position) bool {
	return pos.X >= 0 && pos.X <= 100 && pos.Y >= 0 && pos.Y <= 100
}

func anchorColumn(anchor string) string {
	switch anchor {
	case "top-left", "left", "bottom-left":
		return "left"
	case "top-right", "right", "bottom-right":
		return "right"
	default:
		return "center"
	}
}

func anchorRow(anchor string) string {
	switch anchor {
	case "top-left", "top", "top-right":
		return "top"
	case "bottom-left", "bottom", "bottom-right":
		return "bottom"
	default:
		return "middle"
	}
}

// escapeDrawtext prepares text for a single-quoted drawtext value.
// Inside quotes only the quote character is special; it closes the
// section, inserts an escaped quote, and reopens.
func escapeDrawtext(text string) string {
	return strings.ReplaceAll(text, "'", `'\''`)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
