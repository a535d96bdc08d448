package main

import (
	"io"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/jhoicas/cfdi-engine/pkg/config"
	"github.com/jhoicas/cfdi-engine/pkg/logger"
)

var version = "1.0.0"

// cliApp dependencias compartidas por los subcomandos.
type cliApp struct {
	fs  afero.Fs
	out io.Writer
	cfg *config.Config
	log *logger.Logger
}

func newRootCmd(app *cliApp) *cobra.Command {
	root := &cobra.Command{
		Use:   "cfdictl",
		Short: "Herramientas de operación del motor de CFDI",
		Long: `cfdictl reúne las tareas que no pasan por la API: revisar el certificado de sello
digital, leer o importar XML timbrados, empaquetar los XML de un mes y aplicar migraciones.

La configuración se lee igual que en la API (variables de entorno o .env).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.cfg == nil {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				app.cfg = cfg
			}
			if app.log == nil {
				level, _ := cmd.Flags().GetString("log-level")
				if level == "" {
					level = app.cfg.Log.Level
				}
				app.log = logger.New(logger.Config{Env: "development", Level: level, Out: cmd.ErrOrStderr()})
			}
			return nil
		},
	}
	root.SetOut(app.out)
	root.PersistentFlags().String("log-level", "", "nivel de log (trace, debug, info, warn, error)")

	root.AddCommand(
		newCertCmd(app),
		newParseCmd(app),
		newImportCmd(app),
		newArchiveCmd(app),
		newMigrateCmd(app),
	)
	return root
}

// location zona de CFDI_TIMEZONE; UTC si no se puede cargar.
func (a *cliApp) location() *time.Location {
	loc, err := time.LoadLocation(a.cfg.CFDI.Timezone)
	if err != nil {
		a.log.Warn().Err(err).Str("tz", a.cfg.CFDI.Timezone).Msg("zona horaria inválida, se usa UTC")
		return time.UTC
	}
	return loc
}
