package web

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var promInit bool

func StartPromServer(logger *zap.Logger, port string) {
	if promInit {
		return
	}
	promInit = true
	logger.Info("serving prom stats on " + port)
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(port, nil); err != nil {
			logger.Error("prom server stopped", zap.Error(err))
		}
	}()
}
