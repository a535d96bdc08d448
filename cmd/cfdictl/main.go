// Command cfdictl tareas de operación del motor de CFDI: certificado, importación masiva,
// paquetes mensuales de XML y migraciones.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

func main() {
	// .env local opcional; las variables del entorno ganan.
	_ = godotenv.Load()

	app := &cliApp{fs: afero.NewOsFs(), out: os.Stdout}
	if err := newRootCmd(app).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
