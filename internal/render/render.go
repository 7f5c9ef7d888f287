// Package render formats band and top-level output according to the
// configured display options.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthwatch/internal/bands"
	"github.com/alanyoungcy/depthwatch/internal/domain"
)

// DisplayMode selects which band fields are shown.
type DisplayMode string

const (
	DisplayTotal DisplayMode = "total"
	DisplayRatio DisplayMode = "ratio"
	DisplayBoth  DisplayMode = "both"
)

// Options are the display settings.
type Options struct {
	Display        DisplayMode
	PricePrecision int
	SizePrecision  int
	// StickySide, when set, reduces the view to the single band with the
	// largest volume on that side.
	StickySide domain.Side
	// Bands limits the view when StickySide is unset; empty shows all bands.
	Bands []string
}

// Field is one key=value pair of a rendered line.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Renderer formats engine output.
type Renderer struct {
	opts Options
}

// New returns a Renderer; an empty display mode means DisplayBoth.
func New(opts Options) *Renderer {
	if opts.Display == "" {
		opts.Display = DisplayBoth
	}
	return &Renderer{opts: opts}
}

// BandFields renders the selected bands of u.
func (r *Renderer) BandFields(u domain.BandUpdate) []Field {
	snap := u.Snapshot
	use := r.opts.Bands
	if r.opts.StickySide != "" {
		use = []string{bands.StickyBand(snap, r.opts.StickySide)}
	}
	if len(use) == 0 {
		use = domain.Bands
	}

	var out []Field
	for _, label := range use {
		m, ok := snap.Band(label)
		if !ok {
			continue
		}
		if r.opts.Display == DisplayTotal || r.opts.Display == DisplayBoth {
			out = append(out,
				Field{label + "_bid", r.size(m.Bid)},
				Field{label + "_ask", r.size(m.Ask)},
			)
		}
		if r.opts.Display == DisplayRatio || r.opts.Display == DisplayBoth {
			out = append(out,
				Field{label + "_ratio", ratio(m.Ratio)},
				Field{label + "_imb%", strconv.FormatFloat(m.ImbalancePct, 'f', 2, 64)},
				Field{label + "_pred", string(m.Predicted)},
			)
		}
	}
	return out
}

// BandLine renders u as a single " | " separated line headed by the delta
// summary.
func (r *Renderer) BandLine(stream string, u domain.BandUpdate) string {
	d := u.Delta
	parts := []string{
		fmt.Sprintf("[+%s/-%s/Δ%s]", r.size(d.Added), r.size(d.Subtracted), r.size(d.Net)),
		u.Snapshot.Datetime,
		strings.ToUpper(stream),
		string(u.Snapshot.Mode),
	}
	for _, f := range r.BandFields(u) {
		parts = append(parts, f.Key+"="+f.Value)
	}
	return strings.Join(parts, " | ")
}

// TopFields renders each level as side@price=size.
func (r *Renderer) TopFields(t domain.TopLevels) []Field {
	out := make([]Field, len(t.Levels))
	for i, l := range t.Levels {
		out[i] = Field{Key: string(l.Side) + "@" + r.price(l.Price), Value: r.size(l.Quantity)}
	}
	return out
}

// TopLine renders t as a single line.
func (r *Renderer) TopLine(stream string, t domain.TopLevels) string {
	parts := []string{
		t.At.Format("2006-01-02 15:04:05"),
		strings.ToUpper(stream),
		fmt.Sprintf("TOP-LEVELS (N=%d)", t.N),
	}
	for _, f := range r.TopFields(t) {
		parts = append(parts, f.Key+"="+f.Value)
	}
	return strings.Join(parts, " | ")
}

func (r *Renderer) size(q float64) string {
	return strconv.FormatFloat(q, 'f', r.opts.SizePrecision, 64)
}

func (r *Renderer) price(p string) string {
	d, err := decimal.NewFromString(p)
	if err != nil {
		return p
	}
	return d.StringFixed(int32(r.opts.PricePrecision))
}

func ratio(v domain.Ratio) string {
	if v.IsInf() {
		return "∞"
	}
	return strconv.FormatFloat(float64(v), 'f', -1, 64)
}
