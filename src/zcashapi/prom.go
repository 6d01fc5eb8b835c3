package zcashapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rpcErrorCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "zdt_rpc_errors",
	Help: "Number of failed rpc calls to zcashd, by method",
}, []string{"method"})

func RecordRPCError(method string) {
	rpcErrorCounter.With(prometheus.Labels{"method": method}).Inc()
}
