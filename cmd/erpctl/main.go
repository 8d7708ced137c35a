// Comando erpctl: tareas de operación fuera del API (migraciones, carga de catálogo, alertas).
package main

import "github.com/jhoicas/gestion-pyme/cmd/erpctl/commands"

func main() {
	commands.Execute()
}
