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
	"github.com/tu-usuario/facturador-sri/internal/application/billing"
	"github.com/tu-usuario/facturador-sri/internal/application/scheduler"
	"github.com/tu-usuario/facturador-sri/internal/application/usecase"
	domainsri "github.com/tu-usuario/facturador-sri/internal/domain/sri"
	"github.com/tu-usuario/facturador-sri/internal/infrastructure/email"
	"github.com/tu-usuario/facturador-sri/internal/infrastructure/postgres"
	infrasri "github.com/tu-usuario/facturador-sri/internal/infrastructure/sri"
	"github.com/tu-usuario/facturador-sri/internal/infrastructure/sri/signer"
	httpRouter "github.com/tu-usuario/facturador-sri/internal/interfaces/http"
	"github.com/tu-usuario/facturador-sri/pkg/config"
	"github.com/tu-usuario/facturador-sri/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("ambiente_sri", cfg.SRI.Ambiente).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	companyRepo := postgres.NewCompanyRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	logRepo := postgres.NewSubmissionLogRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Ciclo SRI: XML → XAdES-BES → recepción SOAP → autorización → correo.
	xmlBuilder := infrasri.NewXMLBuilderService()
	signerSvc := signer.NewDigitalSignatureService()
	soapClient := infrasri.NewSOAPClient(infrasri.Endpoints{
		Recepcion:    cfg.SRI.RecepcionURL,
		Autorizacion: cfg.SRI.AutorizacionURL,
	})

	sriCfg := billing.SRIConfig{
		Ambiente:     cfg.SRI.Ambiente,
		CertPath:     cfg.SRI.CertPath,
		CertPassword: cfg.SRI.CertPassword,
		SubmitPolicy: billing.FixedDelay(cfg.SRI.SubmitMaxRetries, cfg.SRI.SubmitRetryDelay),
		AuthPolicy:   billing.LinearBackoff(cfg.SRI.AuthMaxAttempts, cfg.SRI.AuthInitialDelay, cfg.SRI.AuthBackoffStep),
	}

	sched := scheduler.New(2*time.Minute, log.Component("scheduler"))

	// Sin SMTP configurado no hay notificación por correo; el ciclo sigue igual.
	var notifier billing.Notifier
	if cfg.SMTP.Host != "" {
		notifier = email.NewSMTPNotifier(cfg.SMTP, log.Component("email"))
	}

	orchestrator := billing.NewSRIOrchestrator(
		invoiceRepo, companyRepo, customerRepo, logRepo,
		xmlBuilder, signerSvc, soapClient, notifier, sched,
		sriCfg, log.Component("sri"),
	)

	createInvoiceUC := billing.NewCreateInvoiceUseCase(
		txRunner, invoiceRepo, customerRepo, companyRepo,
		domainsri.NewClaveAccesoService(), orchestrator, log.Component("billing"),
	)
	companyUC := usecase.NewCompanyUseCase(companyRepo)
	customerUC := billing.NewCustomerUseCase(customerRepo)
	logsUC := billing.NewSubmissionLogUseCase(invoiceRepo, logRepo)
	certUC := billing.NewCertificateUseCase(companyRepo, sriCfg)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Facturador SRI API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		CompanyUC:     companyUC,
		CustomerUC:    customerUC,
		CreateInvoice: createInvoiceUC,
		Orchestrator:  orchestrator,
		LogsUC:        logsUC,
		CertUC:        certUC,
		JWTSecret:     cfg.JWT.Secret,
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

	// Drena las tareas pendientes del ciclo SRI antes de soltar el pool.
	sched.Stop()

	log.Info().Msg("aplicación detenida")
}
