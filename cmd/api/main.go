package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"

	"github.com/jhoicas/cfdi-engine/docs"
	"github.com/jhoicas/cfdi-engine/internal/application/cfdi"
	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	infracfdi "github.com/jhoicas/cfdi-engine/internal/infrastructure/cfdi"
	"github.com/jhoicas/cfdi-engine/internal/infrastructure/postgres"
	"github.com/jhoicas/cfdi-engine/internal/infrastructure/storage"
	httpRouter "github.com/jhoicas/cfdi-engine/internal/interfaces/http"
	"github.com/jhoicas/cfdi-engine/pkg/config"
	"github.com/jhoicas/cfdi-engine/pkg/logger"
)

// @title						CFDI Engine API
// @version					1.0
// @description				Motor de CFDI 4.0: timbrado, complementos de pago, anticipos, cancelación e importación.
// @BasePath					/
// @securityDefinitions.apikey	Bearer
// @in							header
// @name						Authorization
// @description				Bearer <token>
func main() {
	// .env local opcional; las variables del entorno ganan.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.Log.Level,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("mode", cfg.App.Mode).
		Str("issuer", cfg.Issuer.RFC).
		Msg("iniciando aplicación")

	if cfg.CFDI.Migrations {
		version, err := postgres.Migrate(cfg.DB.ConnectionString())
		if err != nil {
			log.Fatal().Err(err).Msg("migraciones")
		}
		log.Info().Uint("version", version).Msg("esquema al día")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	loc, err := time.LoadLocation(cfg.CFDI.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("tz", cfg.CFDI.Timezone).Msg("zona horaria")
	}
	taxRate, err := decimal.NewFromString(cfg.Issuer.DefaultTaxRate)
	if err != nil {
		log.Fatal().Err(err).Msg("ISSUER_TAX_RATE inválida")
	}

	osFs := afero.NewOsFs()
	certs := infracfdi.NewCertificateManager(osFs, infracfdi.CertificateConfig{
		CertPath:   cfg.CFDI.CertPath,
		KeyPath:    cfg.CFDI.KeyPath,
		Passphrase: cfg.CFDI.KeyPassword,
	})
	if st := certs.Validate(); !st.Valid {
		// Se arranca igual: el timbrado responde 412 hasta que se corrija el CSD.
		log.Warn().Str("detail", st.Message).Msg("certificado de sello digital no utilizable")
	} else if st.Warning {
		log.Warn().Int("days", st.DaysRemaining).Str("serial", st.Serial).Msg(st.Message)
	}

	// En modo "dev" se timbra con un firmante local; no se contacta al PAC.
	var signer cfdi.RemoteSigner = infracfdi.NewMockSigner()
	if cfg.App.Mode != "dev" {
		signer = infracfdi.NewPACClient(infracfdi.PACConfig{
			StampURL:  cfg.PAC.StampURL,
			CancelURL: cfg.PAC.CancelURL,
			User:      cfg.PAC.User,
			Password:  cfg.PAC.Password,
			Timeout:   time.Duration(cfg.PAC.TimeoutSeconds) * time.Second,
		})
	}

	txRunner := postgres.NewTxRunner(pool)
	store := storage.NewFileStore(osFs, cfg.CFDI.StorageDir)

	coordinator := cfdi.NewCoordinator(
		txRunner, certs, infracfdi.NewXMLBuilder(), infracfdi.NewSealer(), signer, store,
		cfdi.CoordinatorConfig{
			Issuer: entity.IssuerProfile{
				RFC:            cfg.Issuer.RFC,
				Name:           cfg.Issuer.Name,
				TaxRegime:      cfg.Issuer.Regime,
				PostalCode:     cfg.Issuer.PostalCode,
				Series:         cfg.CFDI.Series,
				DefaultTaxRate: taxRate,
			},
			Series:        cfg.CFDI.Series,
			PaymentSeries: cfg.CFDI.PaymentSeries,
			Location:      loc,
		},
		log,
	)
	importer := cfdi.NewImportService(txRunner, infracfdi.NewParser(cfg.Issuer.RFC, loc), store, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 90, // el PAC puede tardar
		IdleTimeout:  time.Second * 60,
		BodyLimit:    8 * 1024 * 1024,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	docs.SwaggerInfo.Host = cfg.HTTP.Addr()
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "CFDI Engine API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "mode": cfg.App.Mode})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Stamper:   coordinator,
		Importer:  importer,
		JWTSecret: cfg.JWT.Secret,
		IssuerRFC: cfg.Issuer.RFC,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
