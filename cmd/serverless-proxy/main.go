// Command serverless-proxy is a lambda function that serves a gorilla/mux
// router through the api gateway proxy integration.
//
// Settings are read from the environment:
//
//	PROXY_CONFIG       proxy.Config json, e.g. {"binary-mime-types": ["image/*"]}
//	PROXY_LOCK_CONFIG  lambdautils.InvocationLock json; enables duplicate
//	                   invocation detection when set
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/prognoshealth/serverlessproxy/lambdautils"
	"github.com/prognoshealth/serverlessproxy/proxy"
)

func hello(w http.ResponseWriter, r *http.Request) {
	b, err := json.Marshal("Hello, serverless!")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}

func newRouter() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/hello", hello).Methods("GET")

	return proxy.Middleware(r)
}

// proxyOptions builds the proxy options from the environment.
func proxyOptions(logger *zap.Logger, registerer prometheus.Registerer) ([]proxy.Option, error) {
	cfg := &proxy.Config{}

	if s := os.Getenv("PROXY_CONFIG"); s != "" {
		var err error
		if cfg, err = proxy.NewConfigFromJson(s); err != nil {
			return nil, errors.Wrap(err, "invalid PROXY_CONFIG")
		}
	}

	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}

	opts = append(opts,
		proxy.WithLogger(logger),
		proxy.WithMetrics(proxy.NewMetrics(registerer)),
	)

	if s := os.Getenv("PROXY_LOCK_CONFIG"); s != "" {
		lock, err := lambdautils.NewInvocationLockFromJson(s)
		if err != nil {
			return nil, errors.Wrap(err, "invalid PROXY_LOCK_CONFIG")
		}

		opts = append(opts, proxy.WithGuard(lock))
	}

	return opts, nil
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	opts, err := proxyOptions(logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("failed to configure proxy", zap.Error(err))
	}

	p := proxy.New(newRouter(), opts...)

	lambda.StartWithOptions(p.Handle, lambda.WithEnableSIGTERM(func() {
		if err := p.Close(); err != nil {
			logger.Warn("failed closing proxy", zap.Error(err))
		}
		logger.Sync()
	}))
}
