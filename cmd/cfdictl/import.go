package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/jhoicas/cfdi-engine/internal/application/cfdi"
	infracfdi "github.com/jhoicas/cfdi-engine/internal/infrastructure/cfdi"
	"github.com/jhoicas/cfdi-engine/internal/infrastructure/postgres"
	"github.com/jhoicas/cfdi-engine/internal/infrastructure/storage"
)

func newImportCmd(app *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <archivo.xml>...",
		Short: "Importa CFDI timbrados desde archivos XML",
		Long: `Registra cada XML igual que POST /api/cfdi/import: deduplica por folio fiscal, guarda el
archivo en CFDI_STORAGE_DIR y aplica los complementos de pago a las cuentas por cobrar.

Un folio ya vivo se reporta y se continúa con el siguiente salvo que se pase --stop-on-error.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stop, _ := cmd.Flags().GetBool("stop-on-error")

			pool, err := postgres.NewPool(cmd.Context(), app.cfg.DB)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := cfdi.NewImportService(
				postgres.NewTxRunner(pool),
				infracfdi.NewParser(app.cfg.Issuer.RFC, app.location()),
				storage.NewFileStore(app.fs, app.cfg.CFDI.StorageDir),
				app.log,
			)

			out := cmd.OutOrStdout()
			failed := 0
			for _, file := range args {
				raw, err := afero.ReadFile(app.fs, file)
				if err == nil {
					var res *cfdi.ImportResult
					res, err = svc.Import(cmd.Context(), raw)
					if err == nil {
						fmt.Fprintf(out, "%s\t%s\t%s\tpagos=%d omitidos=%d\n",
							file, res.Document.UUID, res.Document.Kind, res.AppliedPayments, res.SkippedPayments)
						continue
					}
				}
				failed++
				fmt.Fprintf(out, "%s\tERROR\t%v\n", file, err)
				if stop {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d de %d archivos no se importaron", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().Bool("stop-on-error", false, "detenerse en el primer archivo que falle")
	return cmd
}
