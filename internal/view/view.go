// Package view renders the admin list screens for a terminal. It plays the
// role the HTML template layer plays in a browser frontend: read-only
// presentation of fetched collections, with the same option labels the
// invoice editor shows in its selectors.
package view

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"text/template"

	"github.com/victorsl/facturas/internal/models"
)

var (
	tplOnce sync.Once
	tpls    *template.Template
)

const listados = `
{{- define "clientes" -}}
ID	Nombre	Email	Teléfono	Dirección
{{range . -}}
{{.ID}}	{{nombreCompleto .}}	{{.Email}}	{{orND .Telefono}}	{{orND .Direccion}}
{{end -}}
{{- end -}}

{{- define "productos" -}}
ID	Nombre	Descripción	Precio	Stock
{{range . -}}
{{.ID}}	{{.Nombre}}	{{orND .Descripcion}}	{{euros .Precio}}	{{stock .Stock}}
{{end -}}
{{- end -}}

{{- define "facturas" -}}
ID	Fecha	Cliente	Subtotal	IVA	Total
{{range . -}}
{{.ID}}	{{fecha .Fecha}}	{{orND .NombreCliente}}	{{euros .Subtotal}}	{{euros .IVA}}	{{euros .Total}}
{{end -}}
{{- end -}}

{{- define "detalles" -}}
#	Producto	Descripción	Cant.	P. Unit.	Subtotal
{{range $i, $d := . -}}
{{suma $i 1}}	{{nombreProducto $d}}	{{orND .DescripcionProducto}}	{{.Cantidad}}	{{euros .PrecioUnitario}}	{{euros .SubtotalLinea}}
{{end -}}
{{- end -}}
`

func templates() *template.Template {
	tplOnce.Do(func() {
		funcs := template.FuncMap{
			"euros": func(v float64) string { return fmt.Sprintf("%.2f €", v) },
			"fecha": func(f models.Fecha) string {
				if f.IsZero() {
					return "N/A"
				}
				return f.Format("02/01/2006")
			},
			"orND": func(s string) string {
				if strings.TrimSpace(s) == "" {
					return "N/D"
				}
				return s
			},
			"stock": func(s *int) string {
				if s == nil {
					return "N/D"
				}
				return fmt.Sprintf("%d", *s)
			},
			"nombreCompleto": func(c models.Cliente) string { return c.NombreCompleto() },
			"nombreProducto": func(d models.DetalleFactura) string { return d.NombreProductoODefecto() },
			"suma":           func(a, b int) int { return a + b },
		}
		tpls = template.Must(template.New("listados").Funcs(funcs).Parse(listados))
	})
	return tpls
}

func renderTabla(w io.Writer, name string, data any) error {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	if err := templates().ExecuteTemplate(tw, name, data); err != nil {
		return fmt.Errorf("view: %s: %w", name, err)
	}
	return tw.Flush()
}

func Clientes(w io.Writer, clientes []models.Cliente) error {
	return renderTabla(w, "clientes", clientes)
}

func Productos(w io.Writer, productos []models.Producto) error {
	return renderTabla(w, "productos", productos)
}

func Facturas(w io.Writer, facturas []models.Factura) error {
	return renderTabla(w, "facturas", facturas)
}

// FacturaDetalle prints the invoice detail screen: party block, line table
// and the authoritative totals.
func FacturaDetalle(w io.Writer, f *models.Factura) error {
	fmt.Fprintf(w, "Factura Nº %d\n", f.ID)
	if !f.Fecha.IsZero() {
		fmt.Fprintf(w, "Fecha: %s\n", f.Fecha.Format("02/01/2006"))
	}
	fmt.Fprintf(w, "Cliente: %s\n\n", f.Cliente.NombreCompleto())
	if err := renderTabla(w, "detalles", f.Detalles); err != nil {
		return err
	}
	tasa := "N/A"
	if v, ok := f.TasaIVA(); ok {
		tasa = fmt.Sprintf("%.0f", v)
	}
	fmt.Fprintf(w, "\nSubtotal: %.2f €\nIVA (%s%%): %.2f €\nTOTAL: %.2f €\n", f.Subtotal, tasa, f.IVA, f.Total)
	return nil
}

// EtiquetaCliente is the selector label for a customer, as shown in the
// invoice editor: "Ana Pérez (ID: 7)".
func EtiquetaCliente(c *models.Cliente) string {
	return fmt.Sprintf("%s (ID: %d)", c.NombreCompleto(), c.ID)
}

// EtiquetaProducto is the selector label for a product, with stock appended
// only when inventory is tracked: "Widget (€9.99) - Stock: 3".
func EtiquetaProducto(p *models.Producto) string {
	etiqueta := fmt.Sprintf("%s (€%.2f)", p.Nombre, p.Precio)
	if p.Stock != nil {
		etiqueta += fmt.Sprintf(" - Stock: %d", *p.Stock)
	}
	return etiqueta
}
