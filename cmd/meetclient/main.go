package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	router "github.com/dkeye/meetclient/internal/adapters/http"
	"github.com/dkeye/meetclient/internal/adapters/rest"
	"github.com/dkeye/meetclient/internal/adapters/rtc"
	sig "github.com/dkeye/meetclient/internal/adapters/signal"
	"github.com/dkeye/meetclient/internal/adapters/tokenstore"
	"github.com/dkeye/meetclient/internal/app/orch"
	"github.com/dkeye/meetclient/internal/config"
	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/dkeye/meetclient/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	flags := pflag.NewFlagSet("meetclient", pflag.ExitOnError)
	config.Flags(flags)
	_ = flags.Parse(os.Args[1:])

	cfg, v, err := config.Load(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.ApplyLogLevel(cfg.LogLevel)
	config.Watch(v)

	tokens := tokenstore.New(afero.NewOsFs(), cfg.TokenPath)
	backend := rest.NewClient(cfg.ServerURL, cfg.RequestTimeout, tokens.Token)
	dialer := sig.NewDialer(sig.Options{
		URL:        cfg.SignalURL,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		WriteWait:  cfg.WriteWait,
	}, tokens.Token)
	m := metrics.New()

	fallbackICE := cfg.ICE()
	coord := orch.New(orch.Deps{
		Backend: backend,
		Dialer:  dialer,
		NewDevice: func(ice []core.ICEServer) core.Device {
			if len(ice) == 0 {
				ice = fallbackICE
			}
			return rtc.NewDevice(ice)
		},
		Capturer: rtc.NewCapturer(),
		Metrics:  m,
		Timeouts: orch.Timeouts{
			Negotiation: cfg.NegotiationTimeout,
			Admission:   cfg.AdmissionTimeout,
			Request:     cfg.RequestTimeout,
		},
	})

	name := cfg.DisplayName
	if name == "" {
		name, _ = os.Hostname()
	}
	user, err := domain.NewUser(name)
	if err != nil {
		log.Fatal().Err(err).Str("display_name", name).Msg("invalid display name")
	}
	if err := coord.Connect(ctx, *user); err != nil {
		log.Error().Err(err).Msg("running in fallback mode")
	}

	r := router.SetupRouter(cfg, coord, backend, m)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("control API started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	coord.Close()
	log.Info().Msg("Client exited gracefully")
}
