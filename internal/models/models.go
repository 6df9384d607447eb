package models

import (
	"fmt"
	"strings"
	"time"
)

// Wire types for the invoicing backend. Field names follow the API's JSON
// contract (Spanish), which is authoritative; helpers cover the display
// fallbacks the admin screens rely on.

// Cliente entity (read-only here; the backend owns persistence).
type Cliente struct {
	ID        int    `json:"id"`
	Nombre    string `json:"nombre"`
	Apellido  string `json:"apellido,omitempty"` // opcional
	Email     string `json:"email"`
	Telefono  string `json:"telefono,omitempty"`
	Direccion string `json:"direccion,omitempty"`
}

// NombreCompleto joins nombre and apellido, falling back to the agreed
// placeholder so documents never show a blank party name.
func (c *Cliente) NombreCompleto() string {
	if c == nil {
		return "Cliente no especificado"
	}
	full := strings.TrimSpace(strings.TrimSpace(c.Nombre) + " " + strings.TrimSpace(c.Apellido))
	if full == "" {
		return "Cliente no especificado"
	}
	return full
}

// Producto entity. Stock is a pointer: absent means inventory is untracked,
// which is not the same as a stock of zero.
type Producto struct {
	ID          int     `json:"id"`
	Nombre      string  `json:"nombre"`
	Descripcion string  `json:"descripcion,omitempty"`
	Precio      float64 `json:"precio"`
	Stock       *int    `json:"stock,omitempty"`
}

// Fecha tolerates both RFC 3339 and the zone-less isoformat timestamps the
// backend emits (e.g. "2024-05-17T09:30:00").
type Fecha struct {
	time.Time
}

func (f *Fecha) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		f.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			f.Time = t
			return nil
		}
	}
	return fmt.Errorf("fecha: formato no reconocido %q", s)
}

func (f Fecha) MarshalJSON() ([]byte, error) {
	if f.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + f.Format(time.RFC3339) + `"`), nil
}

// Factura is the resolved invoice as persisted by the backend: customer
// snapshot, ordered line items, and the authoritative subtotal/iva/total.
// List endpoints return the same shape without Cliente and Detalles.
type Factura struct {
	ID            int              `json:"id"`
	Fecha         Fecha            `json:"fecha"`
	ClienteID     int              `json:"cliente_id"`
	NombreCliente string           `json:"nombre_cliente,omitempty"`
	Cliente       *Cliente         `json:"cliente,omitempty"`
	Subtotal      float64          `json:"subtotal"`
	IVA           float64          `json:"iva"` // monto absoluto, no porcentaje
	Total         float64          `json:"total"`
	Detalles      []DetalleFactura `json:"detalles,omitempty"`
}

// TasaIVA derives the effective tax percentage for display only. It is never
// stored; the second return is false when the rate is undetermined. An absent
// iva decodes to 0, so a zero amount counts as undetermined too and screens
// show "N/A" instead of "0%".
func (f *Factura) TasaIVA() (float64, bool) {
	if f == nil || f.Subtotal == 0 || f.IVA == 0 {
		return 0, false
	}
	return f.IVA / f.Subtotal * 100, true
}

// DetalleFactura is one resolved invoice line with its product snapshot.
type DetalleFactura struct {
	ID                  int     `json:"id"`
	ProductoID          int     `json:"producto_id"`
	NombreProducto      string  `json:"nombre_producto,omitempty"`
	DescripcionProducto string  `json:"descripcion_producto,omitempty"`
	Cantidad            int     `json:"cantidad"`
	PrecioUnitario      float64 `json:"precio_unitario"`
	SubtotalLinea       float64 `json:"subtotal_linea"`
}

// NombreProductoODefecto falls back to the product ID when the name snapshot
// is missing (e.g. the product was deleted after invoicing).
func (d *DetalleFactura) NombreProductoODefecto() string {
	if strings.TrimSpace(d.NombreProducto) == "" {
		return fmt.Sprintf("ID: %d", d.ProductoID)
	}
	return d.NombreProducto
}
