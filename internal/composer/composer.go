// Package composer owns the invoice-in-progress: a selected customer plus an
// ordered list of editable lines whose prices and subtotals are derived, never
// typed in. It validates completeness locally and issues exactly one creation
// request per submit; the backend recomputes all amounts authoritatively.
package composer

import (
	"context"
	"errors"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/victorsl/facturas/internal/api"
	"github.com/victorsl/facturas/internal/models"
	"github.com/victorsl/facturas/validation"
)

// ErrSubmitInFlight is returned when Submit is called while a previous
// creation request has not finished.
var ErrSubmitInFlight = errors.New("composer: envío ya en curso")

// ErrInvalid is returned by Submit when local validation fails; the detailed
// message is on Draft.SubmitError.
var ErrInvalid = errors.New("composer: borrador incompleto")

// Linea is one editable row. Subtotal is always Cantidad * PrecioUnitario at
// the moment of the last mutation; nothing else may write it.
type Linea struct {
	Producto       *models.Producto
	Cantidad       int
	PrecioUnitario float64
	Subtotal       float64
}

func blankLinea() Linea {
	return Linea{Producto: nil, Cantidad: 1, PrecioUnitario: 0, Subtotal: 0}
}

// Draft is the invoice being composed. It is owned by one editing session
// and is not safe for concurrent use; all mutation happens on the caller's
// event loop, matching the reference UI.
type Draft struct {
	Cliente     *models.Cliente
	Lineas      []Linea
	SubmitError string

	submitting bool
}

// NewDraft starts with a single blank line so the editor is never empty.
func NewDraft() *Draft {
	return &Draft{Lineas: []Linea{blankLinea()}}
}

func (d *Draft) SelectCliente(c *models.Cliente) { d.Cliente = c }

// SelectProducto sets the product of line i and mirrors its current price
// into the line. A nil product clears the line back to price and subtotal 0.
// An out-of-range index is a no-op.
func (d *Draft) SelectProducto(i int, p *models.Producto) {
	if i < 0 || i >= len(d.Lineas) {
		return
	}
	l := &d.Lineas[i]
	l.Producto = p
	if p != nil {
		l.PrecioUnitario = p.Precio
	} else {
		l.PrecioUnitario = 0
	}
	l.recompute()
}

// SetCantidad parses raw as an integer and clamps anything unparsable or
// below 1 to 1. Input is never rejected; the line always holds a valid
// quantity afterwards.
func (d *Draft) SetCantidad(i int, raw string) {
	if i < 0 || i >= len(d.Lineas) {
		return
	}
	l := &d.Lineas[i]
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		n = 1
	}
	l.Cantidad = n
	l.recompute()
}

func (l *Linea) recompute() {
	l.Subtotal = float64(l.Cantidad) * l.PrecioUnitario
}

// AddLinea appends a blank line at the end.
func (d *Draft) AddLinea() {
	d.Lineas = append(d.Lineas, blankLinea())
}

// RemoveLinea removes line i. The editor must always keep at least one line,
// so removing the last remaining line is a no-op.
func (d *Draft) RemoveLinea(i int) {
	if len(d.Lineas) <= 1 || i < 0 || i >= len(d.Lineas) {
		return
	}
	d.Lineas = append(d.Lineas[:i], d.Lineas[i+1:]...)
}

// Total is the local, non-authoritative estimate shown while composing.
func (d *Draft) Total() float64 {
	var total float64
	for i := range d.Lineas {
		total += d.Lineas[i].Subtotal
	}
	return total
}

// Validate collects completeness violations: customer selected, and every
// line with a product and a positive quantity.
func (d *Draft) Validate() validation.Violations {
	v := make(validation.Violations)
	validation.Selected("cliente", d.Cliente != nil, v)
	for i := range d.Lineas {
		field := "linea_" + strconv.Itoa(i+1)
		if d.Lineas[i].Producto == nil {
			validation.Selected(field, false, v)
			continue
		}
		validation.PositiveInt(field, d.Lineas[i].Cantidad, v)
	}
	return v
}

// ClearError drops transient submit state. Callers invoke it when the
// compose session is dismissed; Submit also starts from a clean slate.
func (d *Draft) ClearError() { d.SubmitError = "" }

// Submit validates the draft and issues one creation request. On validation
// failure no request is made. On an API failure the draft is preserved for
// correction and SubmitError carries the server's message. On success the
// resolved invoice is returned and the draft should be discarded.
func (d *Draft) Submit(ctx context.Context, client *api.Client) (*models.Factura, error) {
	if d.submitting {
		return nil, ErrSubmitInFlight
	}
	d.ClearError()

	if v := d.Validate(); !v.Empty() {
		d.SubmitError = v.Format()
		return nil, ErrInvalid
	}

	d.submitting = true
	defer func() { d.submitting = false }()

	req := api.CreateFacturaRequest{ClienteID: d.Cliente.ID}
	for i := range d.Lineas {
		l := &d.Lineas[i]
		req.Detalles = append(req.Detalles, api.DetalleRequest{
			ProductoID:     l.Producto.ID,
			Cantidad:       l.Cantidad,
			PrecioUnitario: l.PrecioUnitario,
		})
	}

	factura, err := client.CreateFactura(ctx, req)
	if err != nil {
		d.SubmitError = err.Error()
		return nil, err
	}
	return factura, nil
}

// Catalog holds the two lists the editor needs before it is interactive.
type Catalog struct {
	Clientes  []models.Cliente
	Productos []models.Producto
}

// ClientePorID returns the catalog customer with the given id.
func (c *Catalog) ClientePorID(id int) (*models.Cliente, bool) {
	for i := range c.Clientes {
		if c.Clientes[i].ID == id {
			return &c.Clientes[i], true
		}
	}
	return nil, false
}

// ProductoPorID returns the catalog product with the given id.
func (c *Catalog) ProductoPorID(id int) (*models.Producto, bool) {
	for i := range c.Productos {
		if c.Productos[i].ID == id {
			return &c.Productos[i], true
		}
	}
	return nil, false
}

// LoadCatalog fetches customers and products concurrently. Either failure
// aborts the whole load: callers get both lists or an error, never a
// half-populated catalog.
func LoadCatalog(ctx context.Context, client *api.Client) (*Catalog, error) {
	cat := &Catalog{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		clientes, err := client.Clientes(ctx)
		if err != nil {
			return err
		}
		cat.Clientes = clientes
		return nil
	})
	g.Go(func() error {
		productos, err := client.Productos(ctx)
		if err != nil {
			return err
		}
		cat.Productos = productos
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cat, nil
}
