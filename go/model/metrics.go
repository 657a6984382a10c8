package model

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var modelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cogniblock_model_calls_total",
	Help: "counter of model endpoint calls, per operation and outcome",
}, []string{"op", "status"})

var modelRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cogniblock_model_retries_total",
	Help: "counter of retried transient model call failures",
}, []string{"op"})
