package commands

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/gestion-pyme/internal/application/dto"
)

// Columnas esperadas: codigo;nombre;precio;stock;stock_minimo
const csvColumns = 5

// catalogRows filas válidas del CSV y la línea de archivo de cada una.
type catalogRows struct {
	Rows   []dto.CreateProductRequest
	Lines  []int
	Errors []dto.ImportRowError
}

// parseCatalog lee un CSV separado por ';'. La primera fila se omite si es encabezado.
// Con latin1 el archivo se decodifica como Windows-1252 (exportaciones de Excel).
func parseCatalog(r io.Reader, latin1 bool) (*catalogRows, error) {
	if latin1 {
		r = transform.NewReader(r, charmap.Windows1252.NewDecoder())
	}
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	out := &catalogRows{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("leer csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if line == 1 && isHeader(rec) {
			continue
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		row, err := parseRecord(rec)
		if err != nil {
			code := ""
			if len(rec) > 0 {
				code = strings.TrimSpace(rec[0])
			}
			out.Errors = append(out.Errors, dto.ImportRowError{Line: line, Code: code, Message: err.Error()})
			continue
		}
		out.Rows = append(out.Rows, row)
		out.Lines = append(out.Lines, line)
	}
	return out, nil
}

func isHeader(rec []string) bool {
	return len(rec) > 0 && strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(rec[0], "\ufeff")), "codigo")
}

func parseRecord(rec []string) (dto.CreateProductRequest, error) {
	if len(rec) != csvColumns {
		return dto.CreateProductRequest{}, fmt.Errorf("se esperaban %d columnas, hay %d", csvColumns, len(rec))
	}
	price, err := parsePrice(rec[2])
	if err != nil {
		return dto.CreateProductRequest{}, fmt.Errorf("precio inválido %q", rec[2])
	}
	stock, err := strconv.Atoi(strings.TrimSpace(rec[3]))
	if err != nil {
		return dto.CreateProductRequest{}, fmt.Errorf("stock inválido %q", rec[3])
	}
	minStock, err := strconv.Atoi(strings.TrimSpace(rec[4]))
	if err != nil {
		return dto.CreateProductRequest{}, fmt.Errorf("stock mínimo inválido %q", rec[4])
	}
	return dto.CreateProductRequest{
		Code:     strings.TrimSpace(rec[0]),
		Name:     strings.TrimSpace(rec[1]),
		Price:    price,
		Stock:    stock,
		MinStock: minStock,
	}, nil
}

// parsePrice acepta "2500", "2500.50" y el formato local "2.500,50".
func parsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	return decimal.NewFromString(s)
}
