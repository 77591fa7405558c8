// Package report renders a session's question/answer history as a PDF
// document for download.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/quern/askdata/internal/session"
)

const (
	pageMargin = 15.0
	lineHeight = 6.0
)

// Generate renders the given interactions into a PDF and returns its bytes.
// source labels the data the session was built on.
func Generate(source string, interactions []session.Interaction) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()),
			"", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Data Analysis Report", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, lineHeight,
		fmt.Sprintf("Generated: %s", time.Now().Format("2006-01-02 15:04:05")),
		"", 1, "C", false, 0, "")
	pdf.CellFormat(0, lineHeight, fmt.Sprintf("Source: %s", source),
		"", 1, "C", false, 0, "")
	pdf.CellFormat(0, lineHeight, fmt.Sprintf("Interactions: %d", len(interactions)),
		"", 1, "C", false, 0, "")
	pdf.Ln(4)

	for i, it := range interactions {
		writeInteraction(pdf, i+1, it)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeInteraction(pdf *gofpdf.Fpdf, n int, it session.Interaction) {
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, lineHeight+1,
		fmt.Sprintf("%d. %s", n, it.CreatedAt.Format("2006-01-02 15:04")),
		"", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, lineHeight, "Question", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, lineHeight, tr(it.Question), "", "L", false)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, lineHeight, "Answer", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, lineHeight, tr(it.Answer), "", "L", false)

	if it.Code != "" {
		pdf.SetFont("Courier", "", 9)
		pdf.SetFillColor(240, 240, 240)
		pdf.MultiCell(0, lineHeight-1, tr(it.Code), "", "L", true)
	}

	pdf.Ln(2)
	x, y := pdf.GetX(), pdf.GetY()
	w, _ := pdf.GetPageSize()
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(x, y, w-pageMargin, y)
	pdf.Ln(4)
}
