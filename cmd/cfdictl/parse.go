package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	infracfdi "github.com/jhoicas/cfdi-engine/internal/infrastructure/cfdi"
)

func newParseCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:     "parse <archivo.xml>",
		Short:   "Muestra como JSON el modelo interno de un CFDI timbrado",
		Example: `  cfdictl parse storage/cfdi/2026/10/received/AD662D33-6934-459C-A128-BDF0393E0F44.xml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := afero.ReadFile(app.fs, args[0])
			if err != nil {
				return fmt.Errorf("leer %s: %w", args[0], err)
			}
			doc, err := infracfdi.NewParser(app.cfg.Issuer.RFC, app.location()).Parse(raw)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
}
