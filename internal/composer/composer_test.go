package composer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victorsl/facturas/internal/api"
	"github.com/victorsl/facturas/internal/models"
)

func producto(id int, nombre string, precio float64) *models.Producto {
	return &models.Producto{ID: id, Nombre: nombre, Precio: precio}
}

// checkInvariants asserts the derived-field contract after any mutation:
// every subtotal is cantidad*precio and the total is the sum of subtotals.
func checkInvariants(t *testing.T, d *Draft) {
	t.Helper()
	var suma float64
	for i, l := range d.Lineas {
		esperado := float64(l.Cantidad) * l.PrecioUnitario
		if math.Abs(l.Subtotal-esperado) > 1e-9 {
			t.Fatalf("línea %d: subtotal %v, esperado %v", i, l.Subtotal, esperado)
		}
		suma += l.Subtotal
	}
	if math.Abs(d.Total()-suma) > 1e-9 {
		t.Fatalf("total %v, esperado %v", d.Total(), suma)
	}
}

func TestNewDraftStartsWithOneBlankLine(t *testing.T) {
	d := NewDraft()
	require.Len(t, d.Lineas, 1)
	l := d.Lineas[0]
	assert.Nil(t, l.Producto)
	assert.Equal(t, 1, l.Cantidad)
	assert.Zero(t, l.PrecioUnitario)
	assert.Zero(t, l.Subtotal)
}

func TestSelectProductoMirrorsPrice(t *testing.T) {
	d := NewDraft()
	d.SelectProducto(0, producto(3, "Widget", 9.99))
	checkInvariants(t, d)
	assert.InDelta(t, 9.99, d.Lineas[0].PrecioUnitario, 1e-9)
	assert.InDelta(t, 9.99, d.Lineas[0].Subtotal, 1e-9)

	// Clearing the product zeroes price and subtotal but keeps the quantity.
	d.SetCantidad(0, "4")
	d.SelectProducto(0, nil)
	checkInvariants(t, d)
	assert.Nil(t, d.Lineas[0].Producto)
	assert.Zero(t, d.Lineas[0].Subtotal)
	assert.Equal(t, 4, d.Lineas[0].Cantidad)
}

func TestSetCantidadClampsInvalidInput(t *testing.T) {
	d := NewDraft()
	d.SelectProducto(0, producto(1, "X", 2))
	for _, raw := range []string{"0", "-3", "abc", "", "1.5"} {
		d.SetCantidad(0, raw)
		if d.Lineas[0].Cantidad != 1 {
			t.Fatalf("input %q: cantidad = %d, esperado 1", raw, d.Lineas[0].Cantidad)
		}
		checkInvariants(t, d)
	}
	d.SetCantidad(0, "7")
	assert.Equal(t, 7, d.Lineas[0].Cantidad)
	assert.InDelta(t, 14, d.Lineas[0].Subtotal, 1e-9)
}

func TestRemoveLineaKeepsAtLeastOne(t *testing.T) {
	d := NewDraft()
	d.RemoveLinea(0)
	require.Len(t, d.Lineas, 1, "removing the only line must be a no-op")

	d.AddLinea()
	d.AddLinea()
	d.SelectProducto(1, producto(2, "B", 5))
	d.RemoveLinea(0)
	require.Len(t, d.Lineas, 2)
	// Order is preserved: the former line 1 is now line 0.
	assert.NotNil(t, d.Lineas[0].Producto)
	assert.Equal(t, 2, d.Lineas[0].Producto.ID)

	d.RemoveLinea(5) // out of range: no-op
	require.Len(t, d.Lineas, 2)
}

func TestTotalUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	catalogo := []*models.Producto{
		producto(1, "A", 1.25),
		producto(2, "B", 9.99),
		producto(3, "C", 150),
		nil,
	}
	entradas := []string{"0", "-3", "abc", "", "1", "2", "17", "100"}

	d := NewDraft()
	for i := 0; i < 500; i++ {
		switch rng.Intn(4) {
		case 0:
			d.AddLinea()
		case 1:
			d.RemoveLinea(rng.Intn(len(d.Lineas) + 1))
		case 2:
			d.SelectProducto(rng.Intn(len(d.Lineas)), catalogo[rng.Intn(len(catalogo))])
		case 3:
			d.SetCantidad(rng.Intn(len(d.Lineas)), entradas[rng.Intn(len(entradas))])
		}
		if len(d.Lineas) < 1 {
			t.Fatalf("op %d: draft left with no lines", i)
		}
		checkInvariants(t, d)
	}
}

func TestSubmitWithoutClienteMakesNoRequest(t *testing.T) {
	var llamadas atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		llamadas.Add(1)
	}))
	defer srv.Close()
	client := api.New(srv.URL)

	d := NewDraft()
	d.SelectProducto(0, producto(3, "Widget", 9.99))
	_, err := d.Submit(context.Background(), client)
	require.ErrorIs(t, err, ErrInvalid)
	assert.NotEmpty(t, d.SubmitError)
	assert.Zero(t, llamadas.Load(), "validation failure must not reach the server")
}

func TestSubmitWithIncompleteLineMakesNoRequest(t *testing.T) {
	var llamadas atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		llamadas.Add(1)
	}))
	defer srv.Close()

	d := NewDraft()
	d.SelectCliente(&models.Cliente{ID: 7, Nombre: "Ana"})
	d.SelectProducto(0, producto(3, "Widget", 9.99))
	d.AddLinea() // second line has no product
	_, err := d.Submit(context.Background(), api.New(srv.URL))
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, d.SubmitError, "linea_2: not_selected")
	assert.Zero(t, llamadas.Load())
}

func TestValidateRejectsNonPositiveQuantity(t *testing.T) {
	d := NewDraft()
	d.SelectCliente(&models.Cliente{ID: 7, Nombre: "Ana"})
	d.SelectProducto(0, producto(3, "Widget", 9.99))
	// SetCantidad clamps, so corrupt the field directly to hit the rule.
	d.Lineas[0].Cantidad = 0
	v := d.Validate()
	assert.Equal(t, "must_be_positive", v["linea_1"])
}

func TestSubmitPayloadAnaPerez(t *testing.T) {
	var llamadas atomic.Int32
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		llamadas.Add(1)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/facturas/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":12,"cliente_id":7,"subtotal":39.96,"iva":8.39,"total":48.35}`)
	}))
	defer srv.Close()

	d := NewDraft()
	d.SelectCliente(&models.Cliente{ID: 7, Nombre: "Ana", Apellido: "Pérez"})
	d.SelectProducto(0, producto(3, "Widget", 9.99))
	d.SetCantidad(0, "4")
	require.InDelta(t, 39.96, d.Total(), 1e-9)

	factura, err := d.Submit(context.Background(), api.New(srv.URL))
	require.NoError(t, err)
	require.Equal(t, int32(1), llamadas.Load(), "exactly one creation request")
	assert.Equal(t, 12, factura.ID)
	assert.Empty(t, d.SubmitError)

	assert.EqualValues(t, 7, payload["cliente_id"])
	detalles := payload["detalles"].([]any)
	require.Len(t, detalles, len(d.Lineas))
	linea := detalles[0].(map[string]any)
	assert.EqualValues(t, 3, linea["producto_id"])
	assert.EqualValues(t, 4, linea["cantidad"])
	assert.InDelta(t, 9.99, linea["precio_unitario"].(float64), 1e-9)
}

func TestSubmitServerErrorPreservesDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"stock":"insuficiente para Widget","cantidad":"mínimo 1"}}`)
	}))
	defer srv.Close()

	d := NewDraft()
	d.SelectCliente(&models.Cliente{ID: 7, Nombre: "Ana"})
	d.SelectProducto(0, producto(3, "Widget", 9.99))
	d.SetCantidad(0, "4")

	_, err := d.Submit(context.Background(), api.New(srv.URL))
	require.Error(t, err)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "cantidad: mínimo 1; stock: insuficiente para Widget", d.SubmitError)
	// The draft survives for correction and resubmission.
	require.Len(t, d.Lineas, 1)
	assert.Equal(t, 4, d.Lineas[0].Cantidad)
	assert.NotNil(t, d.Cliente)
}

// reentrante re-enters Submit from inside the in-flight request, on the same
// goroutine, to exercise the single-flight guard without races.
type reentrante struct {
	draft  *Draft
	client *api.Client
	err    error
}

func (rt *reentrante) RoundTrip(req *http.Request) (*http.Response, error) {
	_, rt.err = rt.draft.Submit(req.Context(), rt.client)
	return http.DefaultTransport.RoundTrip(req)
}

func TestSubmitBlocksWhileInFlight(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":1}`)
	}))
	defer srv.Close()

	d := NewDraft()
	d.SelectCliente(&models.Cliente{ID: 7, Nombre: "Ana"})
	d.SelectProducto(0, producto(3, "Widget", 9.99))

	rt := &reentrante{draft: d}
	rt.client = api.New(srv.URL, api.WithHTTPClient(&http.Client{Transport: rt}))

	_, err := d.Submit(context.Background(), rt.client)
	require.NoError(t, err)
	require.ErrorIs(t, rt.err, ErrSubmitInFlight)
}

func TestClearError(t *testing.T) {
	d := NewDraft()
	d.SubmitError = "algo falló"
	d.ClearError()
	assert.Empty(t, d.SubmitError)
}

func TestLoadCatalogBothOrNothing(t *testing.T) {
	t.Run("ambos", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/clientes/":
				fmt.Fprint(w, `[{"id":7,"nombre":"Ana","email":"ana@example.com"}]`)
			case "/productos/":
				fmt.Fprint(w, `[{"id":3,"nombre":"Widget","precio":9.99}]`)
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		cat, err := LoadCatalog(context.Background(), api.New(srv.URL))
		require.NoError(t, err)
		require.Len(t, cat.Clientes, 1)
		require.Len(t, cat.Productos, 1)

		c, ok := cat.ClientePorID(7)
		require.True(t, ok)
		assert.Equal(t, "Ana", c.Nombre)
		_, ok = cat.ProductoPorID(99)
		assert.False(t, ok)
	})

	t.Run("fallo parcial aborta", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/clientes/" {
				fmt.Fprint(w, `[]`)
				return
			}
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"Error al obtener los productos"}`)
		}))
		defer srv.Close()

		cat, err := LoadCatalog(context.Background(), api.New(srv.URL))
		require.Error(t, err)
		assert.Nil(t, cat, "no half-populated catalog")
		var apiErr *api.Error
		assert.True(t, errors.As(err, &apiErr))
	})
}
