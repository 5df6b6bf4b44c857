package qrcode

import (
	"bytes"
	"fmt"
	"os"

	"github.com/jung-kurt/gofpdf"
)

// PosterInfo describes the printable sheet placed in a hall for one program.
type PosterInfo struct {
	Title      string
	Hall       string
	Schedule   string
	ValidRange string
	Attendance string // artifact name
	Feedback   string // artifact name
}

// Poster lays out both session codes of a program on one A4 page.
func (g *Generator) Poster(info PosterInfo) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(info.Title, false)
	pdf.SetCreator("training_qr_backend", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(false, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.MultiCell(0, 10, info.Title, "", "C", false)
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 12)
	for _, line := range []string{info.Hall, info.Schedule, info.ValidRange} {
		if line == "" {
			continue
		}
		pdf.CellFormat(0, 7, line, "", 1, "C", false, 0, "")
	}
	pdf.Ln(8)

	y := pdf.GetY()
	if err := g.placeCode(pdf, "Attendance", info.Attendance, 20, y); err != nil {
		return nil, err
	}
	if err := g.placeCode(pdf, "Feedback", info.Feedback, 115, y); err != nil {
		return nil, err
	}

	if pdf.Err() {
		return nil, pdf.Error()
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) placeCode(pdf *gofpdf.Fpdf, label, name string, x, y float64) error {
	const side = 75.0
	if name == "" {
		return fmt.Errorf("%s qr code has not been generated", label)
	}
	data, err := os.ReadFile(g.Path(name))
	if err != nil {
		return fmt.Errorf("read %s qr code: %w", label, err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	pdf.ImageOptions(name, x, y, side, side, false, opts, 0, "")
	pdf.SetXY(x, y+side+2)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(side, 8, label, "", 0, "C", false, 0, "")
	return nil
}
