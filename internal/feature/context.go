package feature

import (
	"image"

	"github.com/MeKo-Tech/mathfind/internal/region"
)

// surroundingTextDensity measures how much caller-provided text surrounds the
// region: the fraction of a 2x-expanded neighborhood covered by text lines,
// excluding lines that sit inside the region itself.
func surroundingTextDensity(r *region.Region, ctx RegionContext) float64 {
	if len(ctx.TextLines) == 0 {
		return 0
	}
	hood := expandRect(r.Rect, r.Width(), r.Height()/2, ctx.PageWidth, ctx.PageHeight)
	hoodArea := hood.Dx() * hood.Dy()
	if hoodArea == 0 {
		return 0
	}
	covered := 0
	for _, tl := range ctx.TextLines {
		overlap := tl.Rect.Intersect(hood)
		if overlap.Empty() {
			continue
		}
		inside := tl.Rect.Intersect(r.Rect)
		covered += overlap.Dx()*overlap.Dy() - inside.Dx()*inside.Dy()
	}
	d := float64(covered) / float64(hoodArea)
	if d > 1 {
		return 1
	}
	return d
}

// usesMathFont reports whether any math-font text run overlaps the region.
func usesMathFont(r *region.Region, ctx RegionContext) bool {
	for _, tl := range ctx.TextLines {
		if tl.MathFont && tl.Rect.Overlaps(r.Rect) {
			return true
		}
	}
	return false
}

// horizontalAlignment buckets the region center into page thirds.
func horizontalAlignment(r *region.Region, ctx RegionContext) HorizontalAlignment {
	if ctx.PageWidth == 0 {
		return AlignLeft
	}
	cx := float64(r.Rect.Min.X+r.Rect.Max.X) / 2
	third := float64(ctx.PageWidth) / 3
	switch {
	case cx < third:
		return AlignLeft
	case cx < 2*third:
		return AlignCenter
	default:
		return AlignRight
	}
}

// verticalAlignment relates the region to the vertically nearest text line:
// on its baseline band, raised above it, lowered below it, or isolated when
// no text line is near.
func verticalAlignment(r *region.Region, ctx RegionContext) VerticalAlignment {
	nearest, found := nearestTextLine(r.Rect, ctx.TextLines)
	if !found {
		return AlignIsolated
	}
	rc := float64(r.Rect.Min.Y+r.Rect.Max.Y) / 2
	tTop, tBot := float64(nearest.Min.Y), float64(nearest.Max.Y)
	lineH := tBot - tTop
	// "Near" means within two line heights of the line band.
	if rc < tTop-2*lineH || rc > tBot+2*lineH {
		return AlignIsolated
	}
	switch {
	case rc < tTop:
		return AlignRaised
	case rc > tBot:
		return AlignLowered
	default:
		return AlignBaseline
	}
}

// nearestTextLine returns the text line whose vertical center is closest to
// the rect's center.
func nearestTextLine(rect image.Rectangle, lines []TextLine) (image.Rectangle, bool) {
	if len(lines) == 0 {
		return image.Rectangle{}, false
	}
	rc := (rect.Min.Y + rect.Max.Y) / 2
	best := -1
	bestDist := 0
	for i, tl := range lines {
		lc := (tl.Rect.Min.Y + tl.Rect.Max.Y) / 2
		d := rc - lc
		if d < 0 {
			d = -d
		}
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return lines[best].Rect, true
}

// expandRect grows rect by dx/dy on each side, clamped to the page.
func expandRect(rect image.Rectangle, dx, dy, pageW, pageH int) image.Rectangle {
	out := image.Rect(rect.Min.X-dx, rect.Min.Y-dy, rect.Max.X+dx, rect.Max.Y+dy)
	return out.Intersect(image.Rect(0, 0, pageW, pageH))
}
