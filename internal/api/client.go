package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/victorsl/facturas/internal/models"
)

// Client talks to the invoicing backend. It is safe for concurrent use and
// performs no retries: invoice creation must never be replayed implicitly.
type Client struct {
	baseURL string
	hc      *http.Client
}

type Option func(*Client)

// WithTimeout overrides the default 30s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// WithHTTPClient replaces the underlying client (tests, instrumentation).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// do issues one request and decodes the response into out (if non-nil).
// Non-2xx responses come back as *Error.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api: build %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("api: read %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("api: decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// --- Clientes ---

// ClienteRequest carries the writable fields of a customer.
type ClienteRequest struct {
	Nombre    string `json:"nombre"`
	Apellido  string `json:"apellido,omitempty"`
	Email     string `json:"email"`
	Telefono  string `json:"telefono,omitempty"`
	Direccion string `json:"direccion,omitempty"`
}

func (c *Client) Clientes(ctx context.Context) ([]models.Cliente, error) {
	var out []models.Cliente
	if err := c.do(ctx, http.MethodGet, "/clientes/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Cliente(ctx context.Context, id int) (*models.Cliente, error) {
	var out models.Cliente
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/clientes/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateCliente(ctx context.Context, req ClienteRequest) (*models.Cliente, error) {
	var out models.Cliente
	if err := c.do(ctx, http.MethodPost, "/clientes/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCliente(ctx context.Context, id int, req ClienteRequest) (*models.Cliente, error) {
	var out models.Cliente
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/clientes/%d", id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCliente(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/clientes/%d", id), nil, nil)
}

// --- Productos ---

// ProductoRequest carries the writable fields of a product. Stock nil leaves
// inventory untracked.
type ProductoRequest struct {
	Nombre      string  `json:"nombre"`
	Descripcion string  `json:"descripcion,omitempty"`
	Precio      float64 `json:"precio"`
	Stock       *int    `json:"stock,omitempty"`
}

func (c *Client) Productos(ctx context.Context) ([]models.Producto, error) {
	var out []models.Producto
	if err := c.do(ctx, http.MethodGet, "/productos/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Producto(ctx context.Context, id int) (*models.Producto, error) {
	var out models.Producto
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/productos/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProducto(ctx context.Context, req ProductoRequest) (*models.Producto, error) {
	var out models.Producto
	if err := c.do(ctx, http.MethodPost, "/productos/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProducto(ctx context.Context, id int, req ProductoRequest) (*models.Producto, error) {
	var out models.Producto
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/productos/%d", id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProducto(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/productos/%d", id), nil, nil)
}

// --- Facturas ---

// DetalleRequest is one line of an invoice creation payload. The unit price
// is the client's reference value; the backend re-reads the product price
// and recomputes every amount authoritatively.
type DetalleRequest struct {
	ProductoID     int     `json:"producto_id"`
	Cantidad       int     `json:"cantidad"`
	PrecioUnitario float64 `json:"precio_unitario"`
}

type CreateFacturaRequest struct {
	ClienteID int              `json:"cliente_id"`
	Detalles  []DetalleRequest `json:"detalles"`
}

// Facturas lists invoices (summary rows: no Cliente snapshot, no Detalles).
func (c *Client) Facturas(ctx context.Context) ([]models.Factura, error) {
	var out []models.Factura
	if err := c.do(ctx, http.MethodGet, "/facturas/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Factura fetches one resolved invoice with customer snapshot and lines.
func (c *Client) Factura(ctx context.Context, id int) (*models.Factura, error) {
	var out models.Factura
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/facturas/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateFactura persists a composed invoice. The response is the resolved
// invoice with server-computed subtotal, IVA and total.
func (c *Client) CreateFactura(ctx context.Context, req CreateFacturaRequest) (*models.Factura, error) {
	var out models.Factura
	if err := c.do(ctx, http.MethodPost, "/facturas/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteFactura(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/facturas/%d", id), nil, nil)
}
