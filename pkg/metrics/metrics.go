// Package metrics keeps a small local time series of process gauges and shop counters.
package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
)

const (
	defaultRetention = 7 * 24 * time.Hour
	dirName          = "metrics"
)

var (
	mu       sync.RWMutex
	storage  tstorage.Storage
	counters = map[string]int64{}
	gauges   = map[string]int64{}
)

// Point is one sample
type Point struct {
	Timestamp int64 `json:"timestamp"`
	Value     int64 `json:"value"`
}

// InitMetrics opens the series store under workdir/data/metrics. An empty workdir
// keeps everything in memory.
func InitMetrics(workdir string) error {
	mu.Lock()
	defer mu.Unlock()
	if storage != nil {
		_ = storage.Close()
		storage = nil
	}
	counters = map[string]int64{}
	gauges = map[string]int64{}

	opts := []tstorage.Option{
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithRetention(defaultRetention),
	}
	if workdir != "" {
		path := filepath.Join(workdir, "data", dirName)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return err
		}
		opts = append(opts, tstorage.WithDataPath(path))
	}
	s, err := tstorage.NewStorage(opts...)
	if err != nil {
		return err
	}
	storage = s
	return nil
}

func insert(name string, value int64) {
	if storage == nil {
		return
	}
	_ = storage.InsertRows([]tstorage.Row{{
		Metric:    name,
		DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: float64(value)},
	}})
}

// SetGauge records the current value of name
func SetGauge(name string, value int64) {
	mu.Lock()
	defer mu.Unlock()
	gauges[name] = value
	insert(name, value)
}

// Incr adds delta to the counter name and records the new total
func Incr(name string, delta int64) {
	mu.Lock()
	defer mu.Unlock()
	counters[name] += delta
	insert(name, counters[name])
}

// Counter returns the running total of name since start
func Counter(name string) int64 {
	mu.RLock()
	defer mu.RUnlock()
	return counters[name]
}

// Gauge returns the last value set for name
func Gauge(name string) (int64, bool) {
	mu.RLock()
	defer mu.RUnlock()
	v, ok := gauges[name]
	return v, ok
}

// Snapshot returns the current counters and gauges keyed by name
func Snapshot() map[string]int64 {
	mu.RLock()
	defer mu.RUnlock()
	out := make(map[string]int64, len(counters)+len(gauges))
	for k, v := range gauges {
		out[k] = v
	}
	for k, v := range counters {
		out[k] = v
	}
	return out
}

// Select returns the samples of name recorded in [start, end), oldest first
func Select(name string, start, end time.Time) ([]Point, error) {
	mu.RLock()
	defer mu.RUnlock()
	if storage == nil {
		return []Point{}, nil
	}
	dps, err := storage.Select(name, nil, start.Unix(), end.Unix())
	if errors.Is(err, tstorage.ErrNoDataPoints) {
		return []Point{}, nil
	}
	if err != nil {
		return nil, err
	}
	points := make([]Point, 0, len(dps))
	for _, dp := range dps {
		points = append(points, Point{Timestamp: dp.Timestamp, Value: int64(dp.Value)})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
	return points, nil
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if storage == nil {
		return nil
	}
	err := storage.Close()
	storage = nil
	return err
}
