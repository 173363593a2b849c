package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Meander-Cloud/go-cne/config"
	"github.com/Meander-Cloud/go-cne/engine"
	m "github.com/Meander-Cloud/go-cne/message"
)

func serveMetrics(address string, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: time.Second * 5,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("cne: metrics server exited, err=%s", err.Error())
		}
	}()

	return server
}

func run(configPath string, preference m.Rat) error {
	rc, err := config.NewReloadable(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer rc.Close()

	c := rc.Get()

	logPrefix := c.LogPrefix
	if logPrefix == "" {
		logPrefix = config.LogPrefix
	}

	registry := prometheus.NewRegistry()
	liveness := engine.NewPidLiveness(engine.PidLivenessInterval, logPrefix+"-Liveness")
	defer liveness.Close()

	e, err := engine.NewEngine(
		c,
		&engine.Options{
			Registerer: registry,
			Liveness:   liveness,
		},
	)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer e.Shutdown()

	if preference != m.RatInvalid {
		e.SetDefaultNetworkPreference(preference)
	}

	rc.Watch(func(prev, next *config.Config) {
		if prev.DefaultNetworkPreference != next.DefaultNetworkPreference {
			e.SetDefaultNetworkPreference(next.NetworkPreference())
		}
		if prev.LogDebug != next.LogDebug {
			log.Printf("cne: log_debug changed to %t, takes effect on restart", next.LogDebug)
		}
	})

	if c.MetricsAddress != "" {
		server := serveMetrics(c.MetricsAddress, registry)
		defer server.Close()
		log.Printf("cne: serving metrics on %s/metrics", c.MetricsAddress)
	}

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigch // wait
	log.Printf("cne: received signal %s, exiting", sig.String())

	return nil
}

func main() {
	// enable microsecond and file line logging
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	configPath := flag.String("config", "cne.yaml", "path to config file")
	preference := flag.String("preference", "", "override default network preference, wlan or wwan")
	flag.Parse()

	rat := m.RatInvalid
	if *preference != "" {
		var err error
		rat, err = m.ParseRat(*preference)
		if err != nil || (rat != m.RatWlan && rat != m.RatWwan) {
			log.Printf("cne: invalid -preference=%s", *preference)
			os.Exit(2)
		}
	}

	err := run(*configPath, rat)
	if err != nil {
		log.Printf("cne: %s", err.Error())
		os.Exit(1)
	}
}
