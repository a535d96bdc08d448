package main

import (
	"archive/zip"
	"bytes"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cfdi-engine/internal/domain"
	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	"github.com/jhoicas/cfdi-engine/internal/infrastructure/storage"
	"github.com/jhoicas/cfdi-engine/pkg/config"
	"github.com/jhoicas/cfdi-engine/pkg/logger"
)

func testApp(fs afero.Fs) (*cliApp, *bytes.Buffer) {
	out := &bytes.Buffer{}
	cfg := &config.Config{CFDI: config.CFDIConfig{StorageDir: "/data/cfdi", Timezone: "UTC"}}
	return &cliApp{fs: fs, out: out, cfg: cfg, log: logger.Nop()}, out
}

func run(app *cliApp, args ...string) error {
	root := newRootCmd(app)
	root.SetArgs(args)
	return root.Execute()
}

func TestArchive_EmpaquetaElMes(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := storage.NewFileStore(fs, "/data/cfdi")
	sept := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)
	for _, d := range []*entity.FiscalDocument{
		{UUID: "11111111-1111-1111-1111-111111111111", Direction: entity.DirectionIssued, IssuedAt: sept},
		{UUID: "22222222-2222-2222-2222-222222222222", Direction: entity.DirectionReceived, IssuedAt: sept},
		{UUID: "33333333-3333-3333-3333-333333333333", Direction: entity.DirectionIssued, IssuedAt: sept.AddDate(0, 1, 0)},
	} {
		_, err := store.Save(d, []byte("<cfdi:Comprobante/>"))
		require.NoError(t, err)
	}

	app, out := testApp(fs)
	require.NoError(t, run(app, "archive", "--year", "2026", "--month", "9", "--out", "/tmp/sep.zip"))
	assert.Contains(t, out.String(), "/tmp/sep.zip: 2 XML")

	payload, err := afero.ReadFile(fs, "/tmp/sep.zip")
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{
		"issued/11111111-1111-1111-1111-111111111111.xml",
		"received/22222222-2222-2222-2222-222222222222.xml",
	}, names)
}

func TestArchive_SoloUnaDireccionConNombrePorDefecto(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := storage.NewFileStore(fs, "/data/cfdi")
	_, err := store.Save(&entity.FiscalDocument{
		UUID: "22222222-2222-2222-2222-222222222222", Direction: entity.DirectionReceived,
		IssuedAt: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}, []byte("<x/>"))
	require.NoError(t, err)

	app, out := testApp(fs)
	require.NoError(t, run(app, "archive", "--year", "2026", "--month", "9", "--direction", "issued"))
	assert.Contains(t, out.String(), "cfdi-2026-09-issued.zip: 0 XML")

	exists, err := afero.Exists(fs, "cfdi-2026-09-issued.zip")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestArchive_ValidaParametros(t *testing.T) {
	app, _ := testApp(afero.NewMemMapFs())

	err := run(app, "archive", "--year", "2026", "--month", "9", "--direction", "sideways")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sideways")

	err = run(app, "archive", "--year", "2026", "--month", "13")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCert_SinArchivosFalla(t *testing.T) {
	app, _ := testApp(afero.NewMemMapFs())
	app.cfg.CFDI.CertPath = "/csd/no-existe.cer"
	app.cfg.CFDI.KeyPath = "/csd/no-existe.key"
	app.cfg.CFDI.KeyPassword = "12345678a"

	err := run(app, "cert")
	assert.ErrorIs(t, err, domain.ErrCertificateInvalid)
}

func TestParse_ArchivoInexistente(t *testing.T) {
	app, _ := testApp(afero.NewMemMapFs())

	err := run(app, "parse", "/nada.xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nada.xml")
}
