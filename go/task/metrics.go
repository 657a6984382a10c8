package task

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var tasksCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cogniblock_tasks_created_total",
	Help: "counter of created pipeline tasks",
}, []string{"kind"})

var tasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cogniblock_tasks_finished_total",
	Help: "counter of tasks reaching a terminal state",
}, []string{"kind", "status"})

var runningTasks = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "cogniblock_tasks_running",
	Help: "gauge of tasks currently holding a run slot",
})

var tasksSwept = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cogniblock_tasks_swept_total",
	Help: "counter of terminal tasks removed by the retention sweeper",
})
