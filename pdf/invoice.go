// Package pdf lays out a resolved invoice as a paginated A4 document. The
// layout is driven by an explicit vertical cursor threaded through each
// block: measure, draw, advance, check page break. Column widths and the
// fallback strings are part of the output contract and must not change
// silently.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/phpdave11/gofpdf"

	"github.com/victorsl/facturas/internal/models"
)

// ErrMissingData reports an invoice that cannot be rendered at all (absent
// or without identifier). No partial document is ever produced.
var ErrMissingData = errors.New("pdf: faltan datos de la factura")

const (
	margen = 15.0 // mm, all four sides

	altoFilaTabla     = 6.0
	altoCabeceraTabla = 7.0
)

// Issuer identity block. Static by design: it identifies the emitting
// company, not the invoice.
var emisor = []string{
	"Victor S.L.",
	"Calle Real, 23",
	"08001 El Viso del Alcor, Sevilla",
	"NIF: B12345678",
}

// FileName names the output artifact deterministically from the invoice id.
func FileName(id int) string {
	return fmt.Sprintf("Factura-%d.pdf", id)
}

// hoja threads the drawing state through the layout steps.
type hoja struct {
	doc   *gofpdf.Fpdf
	tr    func(string) string
	pageW float64
	pageH float64
	y     float64 // vertical cursor
}

func (h *hoja) texto(x float64, s string) {
	h.doc.Text(x, h.y, h.tr(s))
}

func (h *hoja) textoDerecha(rightX float64, s string) {
	t := h.tr(s)
	h.doc.Text(rightX-h.doc.GetStringWidth(t), h.y, t)
}

func (h *hoja) textoCentrado(s string) {
	t := h.tr(s)
	h.doc.Text((h.pageW-h.doc.GetStringWidth(t))/2, h.y, t)
}

func (h *hoja) nuevaPagina() {
	h.doc.AddPage()
	h.y = margen
}

// recorta trims a cell value to its column width, keeping the grid intact
// when a product name or description is longer than its cell.
func (h *hoja) recorta(s string, w float64) string {
	t := h.tr(s)
	if h.doc.GetStringWidth(t) <= w {
		return t
	}
	for len(t) > 0 && h.doc.GetStringWidth(t+"...") > w {
		t = t[:len(t)-1]
	}
	return t + "..."
}

func formatoImporte(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatoFecha(f models.Fecha) string {
	if f.IsZero() {
		return "N/A"
	}
	return f.Format("02/01/2006")
}

// InvoicePDF renders a resolved invoice into PDF bytes. It is pure with
// respect to its input and re-entrant: every call builds a fresh document.
func InvoicePDF(f *models.Factura) ([]byte, error) {
	if f == nil || f.ID == 0 {
		return nil, ErrMissingData
	}

	doc := gofpdf.New("P", "mm", "A4", "")
	// Page breaks are decided by the cursor, never implicitly.
	doc.SetAutoPageBreak(false, 0)
	pageW, pageH := doc.GetPageSize()
	h := &hoja{
		doc:   doc,
		tr:    doc.UnicodeTranslatorFromDescriptor(""),
		pageW: pageW,
		pageH: pageH,
	}
	h.nuevaPagina()

	// --- Título ---
	doc.SetFont("Helvetica", "B", 18)
	h.textoCentrado("FACTURA")
	h.y += 10

	// --- Datos del emisor ---
	doc.SetFont("Helvetica", "", 10)
	for i, linea := range emisor {
		doc.Text(margen, h.y+float64(i)*4, h.tr(linea))
	}
	h.y += 20

	// --- Cliente y datos de la factura, en dos columnas ---
	colClienteX := margen
	colFacturaX := pageW/2 + 5
	inicioInfo := h.y

	doc.SetFont("Helvetica", "B", 11)
	h.texto(colClienteX, "Facturar a:")
	h.texto(colFacturaX, "Detalles Factura:")
	h.y += 6

	doc.SetFont("Helvetica", "", 10)
	cliente := f.Cliente
	direccion, email, telefono := "Dirección no disponible", "Email no disponible", "Teléfono no disponible"
	if cliente != nil {
		if cliente.Direccion != "" {
			direccion = cliente.Direccion
		}
		if cliente.Email != "" {
			email = cliente.Email
		}
		if cliente.Telefono != "" {
			telefono = cliente.Telefono
		}
	}
	doc.Text(colClienteX, h.y, h.tr(cliente.NombreCompleto()))
	doc.Text(colClienteX, h.y+4, h.tr(direccion))
	doc.Text(colClienteX, h.y+8, h.tr(email))
	doc.Text(colClienteX, h.y+12, h.tr(telefono))
	altoBloqueCliente := 16.0

	doc.Text(colFacturaX, h.y, h.tr(fmt.Sprintf("Nº Factura: %d", f.ID)))
	doc.Text(colFacturaX, h.y+4, h.tr("Fecha Emisión: "+formatoFecha(f.Fecha)))
	altoBloqueFactura := 8.0

	// Advance past the taller column so the blocks can never overlap.
	alto := altoBloqueCliente
	if altoBloqueFactura > alto {
		alto = altoBloqueFactura
	}
	h.y = inicioInfo + 6 + alto + 10

	// --- Tabla de líneas ---
	h.tabla(f.Detalles)
	h.y += 10

	// --- Totales ---
	etiquetasX := pageW - margen - 60
	valoresX := pageW - margen

	doc.SetFont("Helvetica", "", 10)
	h.texto(etiquetasX, "Subtotal:")
	h.textoDerecha(valoresX, formatoImporte(f.Subtotal)+" €")
	h.y += 5

	h.texto(etiquetasX, fmt.Sprintf("IVA (%s%%):", etiquetaTasaIVA(f)))
	h.textoDerecha(valoresX, formatoImporte(f.IVA)+" €")
	h.y += 7

	doc.SetFont("Helvetica", "B", 12)
	h.texto(etiquetasX, "TOTAL:")
	h.textoDerecha(valoresX, formatoImporte(f.Total)+" €")
	h.y += 15

	// --- Pie de página ---
	// If the totals ran into the footer region, the footer moves to a fresh
	// page instead of colliding with them.
	if h.y > pageH-margen-10 {
		h.nuevaPagina()
	}
	doc.SetFont("Helvetica", "", 8)
	doc.SetTextColor(150, 150, 150)
	h.y = pageH - margen/2
	h.textoCentrado("Gracias por su confianza.")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: factura %d: %w", f.ID, err)
	}
	return buf.Bytes(), nil
}

// etiquetaTasaIVA derives the display percentage, "N/A" when undetermined.
func etiquetaTasaIVA(f *models.Factura) string {
	tasa, ok := f.TasaIVA()
	if !ok {
		return "N/A"
	}
	return strconv.FormatFloat(tasa, 'f', 0, 64)
}

// tabla renders the line-item grid, starting continuation pages as needed
// and leaving the cursor at the table's final vertical position.
func (h *hoja) tabla(detalles []models.DetalleFactura) {
	conDescripcion := false
	for i := range detalles {
		if detalles[i].DescripcionProducto != "" {
			conDescripcion = true
			break
		}
	}

	contenidoW := h.pageW - 2*margen
	// Fixed widths; the description column absorbs the remainder, and when
	// absent the product column takes its space.
	wNum, wProducto, wCantidad, wPrecio, wSubtotal := 8.0, 35.0, 12.0, 22.0, 25.0
	wDescripcion := contenidoW - wNum - wProducto - wCantidad - wPrecio - wSubtotal
	if !conDescripcion {
		wProducto += wDescripcion
		wDescripcion = 0
	}

	cabecera := func() {
		h.doc.SetFont("Helvetica", "B", 8)
		h.doc.SetFillColor(41, 128, 185)
		h.doc.SetTextColor(255, 255, 255)
		h.doc.SetXY(margen, h.y)
		h.doc.CellFormat(wNum, altoCabeceraTabla, "#", "1", 0, "C", true, 0, "")
		h.doc.CellFormat(wProducto, altoCabeceraTabla, h.tr("Producto"), "1", 0, "C", true, 0, "")
		if conDescripcion {
			h.doc.CellFormat(wDescripcion, altoCabeceraTabla, h.tr("Descripción"), "1", 0, "C", true, 0, "")
		}
		h.doc.CellFormat(wCantidad, altoCabeceraTabla, h.tr("Cant."), "1", 0, "C", true, 0, "")
		h.doc.CellFormat(wPrecio, altoCabeceraTabla, h.tr("P. Unit. (€)"), "1", 0, "C", true, 0, "")
		h.doc.CellFormat(wSubtotal, altoCabeceraTabla, h.tr("Subtotal (€)"), "1", 1, "C", true, 0, "")
		h.y += altoCabeceraTabla
		h.doc.SetTextColor(0, 0, 0)
		h.doc.SetFont("Helvetica", "", 8)
	}
	cabecera()

	for i := range detalles {
		d := &detalles[i]
		if h.y+altoFilaTabla > h.pageH-margen {
			h.nuevaPagina()
			cabecera()
		}
		descripcion := d.DescripcionProducto
		if descripcion == "" {
			descripcion = "N/A"
		}
		h.doc.SetXY(margen, h.y)
		h.doc.CellFormat(wNum, altoFilaTabla, strconv.Itoa(i+1), "1", 0, "C", false, 0, "")
		h.doc.CellFormat(wProducto, altoFilaTabla, h.recorta(d.NombreProductoODefecto(), wProducto-2), "1", 0, "L", false, 0, "")
		if conDescripcion {
			h.doc.CellFormat(wDescripcion, altoFilaTabla, h.recorta(descripcion, wDescripcion-2), "1", 0, "L", false, 0, "")
		}
		h.doc.CellFormat(wCantidad, altoFilaTabla, strconv.Itoa(d.Cantidad), "1", 0, "R", false, 0, "")
		h.doc.CellFormat(wPrecio, altoFilaTabla, formatoImporte(d.PrecioUnitario), "1", 0, "R", false, 0, "")
		h.doc.CellFormat(wSubtotal, altoFilaTabla, formatoImporte(d.SubtotalLinea), "1", 1, "R", false, 0, "")
		h.y += altoFilaTabla
	}
}
