package app

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/talkincode/storefront/pkg/metrics"
	"go.uber.org/zap"
)

const (
	MetricSystemCPU     = "system_cpuuse"
	MetricSystemMem     = "system_memuse"
	MetricProcessCPU    = "storefront_cpuuse"
	MetricProcessMem    = "storefront_memuse"
	MetricRatingsSynced = "ratings_reconciled"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, err := time.LoadLocation(a.appConfig.System.Location)
	if err != nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	_, err = a.sched.AddFunc("@every 30s", func() {
		go a.SchedSystemMonitorTask()
		go a.SchedProcessMonitorTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@hourly", a.SchedRatingReconcileTask)
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// ReconcileRatings recomputes every reviewed product's rating on the worker pool
func (a *Application) ReconcileRatings() (int, error) {
	workers := a.ConfigMgr().GetInt("shop", "reconcile_workers")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	n, err := a.ratings.ReconcileAll(ctx, workers)
	if n > 0 {
		metrics.Incr(MetricRatingsSynced, int64(n))
	}
	return n, err
}

// SchedRatingReconcileTask repairs ratings that drifted from the review ledger
func (a *Application) SchedRatingReconcileTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	n, err := a.ReconcileRatings()
	if err != nil {
		zap.L().Error("rating reconcile failed", zap.String("namespace", "catalog"), zap.Error(err))
		return
	}
	zap.L().Info("rating reconcile done", zap.String("namespace", "catalog"), zap.Int("products", n))
}

// SchedSystemMonitorTask system monitor
func (a *Application) SchedSystemMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	_cpuuse, err := cpu.Percent(0, false)
	if err == nil && len(_cpuuse) > 0 {
		metrics.SetGauge(MetricSystemCPU, int64(_cpuuse[0]*100)) // percentage * 100
	}

	_meminfo, err := mem.VirtualMemory()
	if err == nil {
		metrics.SetGauge(MetricSystemMem, int64(_meminfo.Used/1024/1024))
	}
}

// SchedProcessMonitorTask app process monitor
func (a *Application) SchedProcessMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}

	cpuuse, err := p.CPUPercent()
	if err == nil {
		metrics.SetGauge(MetricProcessCPU, int64(cpuuse*100)) // percentage * 100
	}

	meminfo, err := p.MemoryInfo()
	if err == nil {
		metrics.SetGauge(MetricProcessMem, int64(meminfo.RSS/1024/1024))
	}
}
