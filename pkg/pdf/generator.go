package pdf

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Field is a labelled line on a document
type Field struct {
	Label string
	Value string
}

// Document describes a single page PDF
type Document struct {
	Title    string
	Subtitle string
	Fields   []Field
	Footer   string
	Created  time.Time
}

// Generator renders documents to PDF bytes
type Generator interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
}

// Color is an RGB triple
type Color struct {
	R, G, B int
}

// Options configures page layout
type Options struct {
	PageSize      string
	Orientation   string // portrait, landscape
	Author        string
	FontFamily    string
	AccentColor   Color
	MarginLeft    float64
	MarginTop     float64
	MarginRight   float64
	TitleFontSize float64
	BodyFontSize  float64
}

// DefaultOptions returns default layout options
func DefaultOptions() Options {
	return Options{
		PageSize:      "A4",
		Orientation:   "landscape",
		Author:        "AquaNexus",
		FontFamily:    "Arial",
		AccentColor:   Color{R: 31, G: 111, B: 139},
		MarginLeft:    20,
		MarginTop:     20,
		MarginRight:   20,
		TitleFontSize: 24,
		BodyFontSize:  12,
	}
}

type gofpdfGenerator struct {
	options Options
}

// NewGenerator creates a gofpdf backed generator
func NewGenerator(options Options) Generator {
	return &gofpdfGenerator{options: options}
}

func (g *gofpdfGenerator) Render(ctx context.Context, doc Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	orientation := "P"
	if g.options.Orientation == "landscape" {
		orientation = "L"
	}

	pdf := gofpdf.New(orientation, "mm", g.options.PageSize, "")
	pdf.SetMargins(g.options.MarginLeft, g.options.MarginTop, g.options.MarginRight)
	pdf.SetAutoPageBreak(false, 0)
	// Core fonts are cp1252; translate UTF-8 input
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle(doc.Title, true)
	pdf.SetAuthor(g.options.Author, true)
	if !doc.Created.IsZero() {
		pdf.SetCreationDate(doc.Created)
	}
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()
	accent := g.options.AccentColor

	pdf.SetDrawColor(accent.R, accent.G, accent.B)
	pdf.SetLineWidth(1.5)
	pdf.Rect(10, 10, pageW-20, pageH-20, "D")

	pdf.SetTextColor(accent.R, accent.G, accent.B)
	pdf.SetFont(g.options.FontFamily, "B", g.options.TitleFontSize)
	pdf.Ln(10)
	pdf.CellFormat(0, 14, tr(doc.Title), "", 1, "C", false, 0, "")

	if doc.Subtitle != "" {
		pdf.SetTextColor(80, 80, 80)
		pdf.SetFont(g.options.FontFamily, "I", g.options.BodyFontSize+2)
		pdf.CellFormat(0, 10, tr(doc.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(8)

	labelW := (pageW - g.options.MarginLeft - g.options.MarginRight) * 0.35
	pdf.SetTextColor(0, 0, 0)
	for _, f := range doc.Fields {
		pdf.SetFont(g.options.FontFamily, "B", g.options.BodyFontSize)
		pdf.CellFormat(labelW, 9, tr(f.Label), "", 0, "R", false, 0, "")
		pdf.SetFont(g.options.FontFamily, "", g.options.BodyFontSize)
		pdf.CellFormat(0, 9, "  "+tr(f.Value), "", 1, "L", false, 0, "")
	}

	if doc.Footer != "" {
		pdf.SetY(pageH - 30)
		pdf.SetFont(g.options.FontFamily, "", g.options.BodyFontSize-3)
		pdf.SetTextColor(110, 110, 110)
		pdf.MultiCell(0, 5, tr(doc.Footer), "", "C", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
