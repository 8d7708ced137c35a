package dto

// ImportRowError fila del archivo que no se pudo importar.
type ImportRowError struct {
	Line    int    `json:"line"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportResult resumen de una importación masiva de productos.
type ImportResult struct {
	Created int              `json:"created"`
	Updated int              `json:"updated"`
	Errors  []ImportRowError `json:"errors,omitempty"`
}
