package main

import (
	"fmt"

	"github.com/spf13/cobra"

	infracfdi "github.com/jhoicas/cfdi-engine/internal/infrastructure/cfdi"
)

func newCertCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "cert",
		Short: "Revisa el certificado de sello digital configurado",
		Long: `Carga el .cer y la .key (o el .pfx) de CFDI_CERT_PATH y CFDI_KEY_PATH, comprueba que la
llave corresponda al certificado y muestra el número de certificado y los días de vigencia.

Termina con error si el certificado no sirve para sellar.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			certs := infracfdi.NewCertificateManager(app.fs, infracfdi.CertificateConfig{
				CertPath:   app.cfg.CFDI.CertPath,
				KeyPath:    app.cfg.CFDI.KeyPath,
				Passphrase: app.cfg.CFDI.KeyPassword,
			})
			st := certs.Validate()
			out := cmd.OutOrStdout()
			if st.Serial != "" {
				fmt.Fprintf(out, "NoCertificado: %s\n", st.Serial)
				fmt.Fprintf(out, "Vence:         %s\n", st.NotAfter.Format("2006-01-02"))
			}
			if !st.Valid {
				return st.Require()
			}
			fmt.Fprintf(out, "Días restantes: %d\n", st.DaysRemaining)
			fmt.Fprintln(out, st.Message)
			return nil
		},
	}
}
