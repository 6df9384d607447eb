package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/victorsl/facturas/internal/api"
	"github.com/victorsl/facturas/internal/composer"
	"github.com/victorsl/facturas/internal/config"
	"github.com/victorsl/facturas/internal/view"
	"github.com/victorsl/facturas/pdf"
	"github.com/victorsl/facturas/validation"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Uso: facturas <comando> [opciones]

Comandos:
  clientes                    lista los clientes
  productos                   lista los productos
  facturas                    lista las facturas
  ver -id N                   muestra una factura con sus líneas
  crear -cliente N -linea PxQ compone y guarda una factura
                              (repetir -linea; ej. -linea 3x4 = producto 3, cantidad 4)
  pdf -id N [-o DIR]          descarga una factura como PDF
  crear-cliente -nombre ... -email ...    alta de un cliente
  editar-cliente -id N [campos]           modifica los campos indicados
  crear-producto -nombre ... -precio P    alta de un producto
  editar-producto -id N [campos]          modifica los campos indicados
  eliminar -factura N         elimina una factura (o -producto, -cliente)

Variables de entorno (o .env): API_BASE_URL, HTTP_TIMEOUT, PDF_OUTPUT_DIR, APP_ENV, DEBUG
`)
}

// lineasFlag collects repeated -linea values ("productoIDxcantidad").
type lineasFlag []string

func (l *lineasFlag) String() string { return strings.Join(*l, ",") }

func (l *lineasFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.Debug {
		log.Printf("Entorno %s, API %s", cfg.Env, cfg.APIBaseURL)
	}
	client := api.New(cfg.APIBaseURL, api.WithTimeout(cfg.HTTPTimeout))
	ctx := context.Background()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "clientes":
		err = runClientes(ctx, client)
	case "productos":
		err = runProductos(ctx, client)
	case "facturas":
		err = runFacturas(ctx, client)
	case "ver":
		err = runVer(ctx, client, os.Args[2:])
	case "crear":
		err = runCrear(ctx, client, os.Args[2:])
	case "pdf":
		err = runPDF(ctx, client, cfg, os.Args[2:])
	case "crear-cliente":
		err = runCrearCliente(ctx, client, os.Args[2:])
	case "editar-cliente":
		err = runEditarCliente(ctx, client, os.Args[2:])
	case "crear-producto":
		err = runCrearProducto(ctx, client, os.Args[2:])
	case "editar-producto":
		err = runEditarProducto(ctx, client, os.Args[2:])
	case "eliminar":
		err = runEliminar(ctx, client, os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func runClientes(ctx context.Context, client *api.Client) error {
	clientes, err := client.Clientes(ctx)
	if err != nil {
		return err
	}
	return view.Clientes(os.Stdout, clientes)
}

func runProductos(ctx context.Context, client *api.Client) error {
	productos, err := client.Productos(ctx)
	if err != nil {
		return err
	}
	return view.Productos(os.Stdout, productos)
}

func runFacturas(ctx context.Context, client *api.Client) error {
	facturas, err := client.Facturas(ctx)
	if err != nil {
		return err
	}
	return view.Facturas(os.Stdout, facturas)
}

func runVer(ctx context.Context, client *api.Client, args []string) error {
	fs := flag.NewFlagSet("ver", flag.ExitOnError)
	id := fs.Int("id", 0, "id de la factura")
	_ = fs.Parse(args)
	if *id == 0 {
		return errors.New("falta -id")
	}
	factura, err := client.Factura(ctx, *id)
	if err != nil {
		return err
	}
	return view.FacturaDetalle(os.Stdout, factura)
}

func runCrear(ctx context.Context, client *api.Client, args []string) error {
	fs := flag.NewFlagSet("crear", flag.ExitOnError)
	clienteID := fs.Int("cliente", 0, "id del cliente")
	var lineas lineasFlag
	fs.Var(&lineas, "linea", "línea productoIDxcantidad (repetible)")
	_ = fs.Parse(args)

	catalogo, err := composer.LoadCatalog(ctx, client)
	if err != nil {
		return fmt.Errorf("error al cargar clientes o productos: %w", err)
	}

	draft := composer.NewDraft()
	if *clienteID != 0 {
		cliente, ok := catalogo.ClientePorID(*clienteID)
		if !ok {
			return fmt.Errorf("cliente %d no existe", *clienteID)
		}
		draft.SelectCliente(cliente)
		log.Printf("Cliente: %s", view.EtiquetaCliente(cliente))
	}

	for i, l := range lineas {
		productoID, cantidad, perr := parseLinea(l)
		if perr != nil {
			return perr
		}
		producto, ok := catalogo.ProductoPorID(productoID)
		if !ok {
			return fmt.Errorf("producto %d no existe", productoID)
		}
		if i > 0 {
			draft.AddLinea()
		}
		draft.SelectProducto(i, producto)
		draft.SetCantidad(i, cantidad)
		log.Printf("Línea %d: %s x %d = %.2f €", i+1, view.EtiquetaProducto(producto), draft.Lineas[i].Cantidad, draft.Lineas[i].Subtotal)
	}
	log.Printf("Total estimado: %.2f € (el servidor recalcula)", draft.Total())

	factura, err := draft.Submit(ctx, client)
	if err != nil {
		if draft.SubmitError != "" {
			return errors.New(draft.SubmitError)
		}
		return err
	}
	log.Printf("Factura %d creada: subtotal %.2f €, IVA %.2f €, total %.2f €",
		factura.ID, factura.Subtotal, factura.IVA, factura.Total)
	return nil
}

// parseLinea splits "3x4" into product id 3 and raw quantity "4". The
// quantity stays a string: the draft owns clamping of bad input.
func parseLinea(s string) (int, string, error) {
	partes := strings.SplitN(s, "x", 2)
	if len(partes) != 2 {
		return 0, "", fmt.Errorf("línea %q inválida, formato productoIDxcantidad", s)
	}
	productoID, err := strconv.Atoi(partes[0])
	if err != nil || productoID < 1 {
		return 0, "", fmt.Errorf("línea %q: producto inválido", s)
	}
	return productoID, partes[1], nil
}

func runPDF(ctx context.Context, client *api.Client, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("pdf", flag.ExitOnError)
	id := fs.Int("id", 0, "id de la factura")
	out := fs.String("o", cfg.OutputDir, "directorio de salida")
	_ = fs.Parse(args)
	if *id == 0 {
		return errors.New("falta -id")
	}

	factura, err := client.Factura(ctx, *id)
	if err != nil {
		return err
	}
	data, err := pdf.InvoicePDF(factura)
	if err != nil {
		return err
	}
	ruta := filepath.Join(*out, pdf.FileName(factura.ID))
	if err := os.WriteFile(ruta, data, 0o644); err != nil {
		return fmt.Errorf("escribir %s: %w", ruta, err)
	}
	log.Printf("PDF generado: %s", ruta)
	return nil
}

func runCrearCliente(ctx context.Context, client *api.Client, args []string) error {
	fs := flag.NewFlagSet("crear-cliente", flag.ExitOnError)
	req := api.ClienteRequest{}
	fs.StringVar(&req.Nombre, "nombre", "", "nombre")
	fs.StringVar(&req.Apellido, "apellido", "", "apellido (opcional)")
	fs.StringVar(&req.Email, "email", "", "email")
	fs.StringVar(&req.Telefono, "telefono", "", "teléfono (opcional)")
	fs.StringVar(&req.Direccion, "direccion", "", "dirección (opcional)")
	_ = fs.Parse(args)

	v := make(validation.Violations)
	validation.Required("nombre", req.Nombre, v)
	validation.Required("email", req.Email, v)
	if !v.Empty() {
		return errors.New(v.Format())
	}
	cliente, err := client.CreateCliente(ctx, req)
	if err != nil {
		return err
	}
	log.Printf("Cliente creado: %s", view.EtiquetaCliente(cliente))
	return nil
}

func runEditarCliente(ctx context.Context, client *api.Client, args []string) error {
	fs := flag.NewFlagSet("editar-cliente", flag.ExitOnError)
	id := fs.Int("id", 0, "id del cliente")
	cambios := api.ClienteRequest{}
	fs.StringVar(&cambios.Nombre, "nombre", "", "nombre")
	fs.StringVar(&cambios.Apellido, "apellido", "", "apellido")
	fs.StringVar(&cambios.Email, "email", "", "email")
	fs.StringVar(&cambios.Telefono, "telefono", "", "teléfono")
	fs.StringVar(&cambios.Direccion, "direccion", "", "dirección")
	_ = fs.Parse(args)
	if *id == 0 {
		return errors.New("falta -id")
	}

	// Like the edit form, start from the stored record and overwrite only
	// the fields the user touched.
	actual, err := client.Cliente(ctx, *id)
	if err != nil {
		return err
	}
	req := api.ClienteRequest{
		Nombre:    actual.Nombre,
		Apellido:  actual.Apellido,
		Email:     actual.Email,
		Telefono:  actual.Telefono,
		Direccion: actual.Direccion,
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "nombre":
			req.Nombre = cambios.Nombre
		case "apellido":
			req.Apellido = cambios.Apellido
		case "email":
			req.Email = cambios.Email
		case "telefono":
			req.Telefono = cambios.Telefono
		case "direccion":
			req.Direccion = cambios.Direccion
		}
	})
	cliente, err := client.UpdateCliente(ctx, *id, req)
	if err != nil {
		return err
	}
	log.Printf("Cliente actualizado: %s", view.EtiquetaCliente(cliente))
	return nil
}

func runCrearProducto(ctx context.Context, client *api.Client, args []string) error {
	fs := flag.NewFlagSet("crear-producto", flag.ExitOnError)
	req := api.ProductoRequest{}
	fs.StringVar(&req.Nombre, "nombre", "", "nombre")
	fs.StringVar(&req.Descripcion, "descripcion", "", "descripción (opcional)")
	fs.Float64Var(&req.Precio, "precio", 0, "precio unitario")
	stock := fs.Int("stock", -1, "stock inicial (-1 = sin control de inventario)")
	_ = fs.Parse(args)

	v := make(validation.Violations)
	validation.Required("nombre", req.Nombre, v)
	validation.PositiveFloat("precio", req.Precio, v)
	if !v.Empty() {
		return errors.New(v.Format())
	}
	if *stock >= 0 {
		req.Stock = stock
	}
	producto, err := client.CreateProducto(ctx, req)
	if err != nil {
		return err
	}
	log.Printf("Producto creado: %s", view.EtiquetaProducto(producto))
	return nil
}

func runEditarProducto(ctx context.Context, client *api.Client, args []string) error {
	fs := flag.NewFlagSet("editar-producto", flag.ExitOnError)
	id := fs.Int("id", 0, "id del producto")
	cambios := api.ProductoRequest{}
	fs.StringVar(&cambios.Nombre, "nombre", "", "nombre")
	fs.StringVar(&cambios.Descripcion, "descripcion", "", "descripción")
	fs.Float64Var(&cambios.Precio, "precio", 0, "precio unitario")
	stock := fs.Int("stock", -1, "stock (-1 = sin control de inventario)")
	_ = fs.Parse(args)
	if *id == 0 {
		return errors.New("falta -id")
	}

	actual, err := client.Producto(ctx, *id)
	if err != nil {
		return err
	}
	req := api.ProductoRequest{
		Nombre:      actual.Nombre,
		Descripcion: actual.Descripcion,
		Precio:      actual.Precio,
		Stock:       actual.Stock,
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "nombre":
			req.Nombre = cambios.Nombre
		case "descripcion":
			req.Descripcion = cambios.Descripcion
		case "precio":
			req.Precio = cambios.Precio
		case "stock":
			if *stock >= 0 {
				req.Stock = stock
			} else {
				req.Stock = nil
			}
		}
	})
	v := make(validation.Violations)
	validation.Required("nombre", req.Nombre, v)
	validation.PositiveFloat("precio", req.Precio, v)
	if !v.Empty() {
		return errors.New(v.Format())
	}
	producto, err := client.UpdateProducto(ctx, *id, req)
	if err != nil {
		return err
	}
	log.Printf("Producto actualizado: %s", view.EtiquetaProducto(producto))
	return nil
}

func runEliminar(ctx context.Context, client *api.Client, args []string) error {
	fs := flag.NewFlagSet("eliminar", flag.ExitOnError)
	facturaID := fs.Int("factura", 0, "id de la factura a eliminar")
	productoID := fs.Int("producto", 0, "id del producto a eliminar")
	clienteID := fs.Int("cliente", 0, "id del cliente a eliminar")
	_ = fs.Parse(args)

	switch {
	case *facturaID != 0:
		if err := client.DeleteFactura(ctx, *facturaID); err != nil {
			return err
		}
		log.Printf("Factura %d eliminada", *facturaID)
	case *productoID != 0:
		if err := client.DeleteProducto(ctx, *productoID); err != nil {
			return err
		}
		log.Printf("Producto %d eliminado", *productoID)
	case *clienteID != 0:
		if err := client.DeleteCliente(ctx, *clienteID); err != nil {
			return err
		}
		log.Printf("Cliente %d eliminado", *clienteID)
	default:
		return errors.New("indica -factura, -producto o -cliente")
	}
	return nil
}
