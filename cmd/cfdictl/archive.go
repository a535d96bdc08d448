package main

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	"github.com/jhoicas/cfdi-engine/internal/infrastructure/storage"
)

func newArchiveCmd(app *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Empaqueta en un ZIP los XML de un mes",
		Example: `  # Emitidos y recibidos de septiembre de 2026
  cfdictl archive --year 2026 --month 9

  # Solo recibidos, a un archivo concreto
  cfdictl archive --year 2026 --month 9 --direction received --out recibidos-2026-09.zip`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			year, _ := cmd.Flags().GetInt("year")
			month, _ := cmd.Flags().GetInt("month")
			dirFlag, _ := cmd.Flags().GetString("direction")
			outPath, _ := cmd.Flags().GetString("out")

			var dir entity.Direction
			switch dirFlag {
			case "", "all":
			case string(entity.DirectionIssued), string(entity.DirectionReceived):
				dir = entity.Direction(dirFlag)
			default:
				return fmt.Errorf("--direction %q inválida (issued, received o all)", dirFlag)
			}
			if outPath == "" {
				suffix := "all"
				if dir != "" {
					suffix = string(dir)
				}
				outPath = fmt.Sprintf("cfdi-%04d-%02d-%s.zip", year, month, suffix)
			}

			store := storage.NewFileStore(app.fs, app.cfg.CFDI.StorageDir)
			payload, count, err := store.ArchiveMonth(year, month, dir)
			if err != nil {
				return err
			}
			if err := afero.WriteFile(app.fs, outPath, payload, 0o644); err != nil {
				return fmt.Errorf("escribir %s: %w", outPath, err)
			}
			app.log.Info().Str("out", outPath).Int("files", count).Msg("paquete mensual generado")
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d XML\n", outPath, count)
			return nil
		},
	}
	now := time.Now()
	cmd.Flags().Int("year", now.Year(), "año")
	cmd.Flags().Int("month", int(now.Month()), "mes (1-12)")
	cmd.Flags().String("direction", "all", "issued, received o all")
	cmd.Flags().String("out", "", "archivo ZIP de salida (por defecto cfdi-aaaa-mm-<dirección>.zip)")
	return cmd
}
