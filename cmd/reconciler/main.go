package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/you/rental-booking/internal/booking"
	"github.com/you/rental-booking/internal/consumer"
	"github.com/you/rental-booking/internal/gateway"
	"github.com/you/rental-booking/internal/ledger"
	"github.com/you/rental-booking/internal/policy"
	"github.com/you/rental-booking/internal/rates"
	"github.com/you/rental-booking/internal/recon"
	httpx "github.com/you/rental-booking/internal/transport/http"
	"github.com/you/rental-booking/internal/webhook"
	"github.com/you/rental-booking/pkg/config"
	"github.com/you/rental-booking/pkg/db"
	"github.com/you/rental-booking/pkg/mq"
	"github.com/you/rental-booking/pkg/obs"
)

func must[T any](v T, err error) T {
	if err != nil {
		log.Fatal(err)
	}
	return v
}

func main() {
	_ = godotenv.Load()
	cfg := must(config.Load())

	shutdown := obs.InitTracer("rental-reconciler")
	defer func() { _ = shutdown(context.Background()) }()

	// DB + repos
	gdb := db.Open(cfg.PGReconDSN)
	bookingRepo := booking.NewRepo(gdb)
	paymentRepo := ledger.NewRepo(gdb)
	rateRepo := rates.NewRepo(gdb)
	policyRepo := policy.NewRepo(gdb)
	logRepo := webhook.NewLogRepo(gdb)
	must(0, errFirst(
		bookingRepo.Migrate(),
		paymentRepo.Migrate(),
		rateRepo.Migrate(),
		policyRepo.Migrate(),
		logRepo.Migrate(),
	))

	// Notification boundary
	pub := must(mq.NewPublisher(cfg.RabbitURL, cfg.ReconExchange))
	defer pub.Close()

	// Gateway adapter (optional)
	var (
		verifier gateway.Verifier
		charger  gateway.Charger
	)
	if cfg.OmiseSecretKey != "" {
		omi := must(gateway.NewOmise(cfg.OmisePublicKey, cfg.OmiseSecretKey, time.Duration(cfg.ChargeLinkTTLHr)*time.Hour))
		charger = omi
		if cfg.VerifyWebhooks {
			verifier = omi
		}
	}

	// Core wiring
	orch := recon.New(gdb, paymentRepo, bookingRepo, pub)
	guard := webhook.NewGuard(logRepo, orch, verifier, cfg.IngestRetries)
	ledgerSvc := ledger.NewService(paymentRepo, policyRepo, rateRepo, bookingRepo)

	// Admin transitions arrive over MQ
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adminCons := must(mq.NewConsumer(cfg.RabbitURL, cfg.AdminExchange, cfg.AdminQueue,
		[]string{consumer.RKCancelRequested, consumer.RKFulfilRequested}))
	defer adminCons.Close()
	must(0, consumer.NewAdminConsumer(orch, adminCons).Run(ctx))
	log.Println("[reconciler] admin consumer started")

	// HTTP
	h := httpx.NewHandler(guard, orch, ledgerSvc, paymentRepo, bookingRepo, rateRepo, logRepo, charger)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: httpx.NewRouter(h)}
	go func() {
		log.Println("[reconciler] http listening on", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	log.Println("[reconciler] stopped")
}

func errFirst(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
