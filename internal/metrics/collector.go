package metrics

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Collector periodically samples the supervised process's CPU and
// memory usage into the gauges. It is a no-op while no server runs.
type Collector struct {
	metrics  *Metrics
	pidFn    func() (int32, bool)
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewCollector builds a sampler. pidFn returns the supervised child's
// PID and whether one is currently running.
func NewCollector(metrics *Metrics, pidFn func() (int32, bool)) *Collector {
	return &Collector{
		metrics:  metrics,
		pidFn:    pidFn,
		interval: 15 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

func (c *Collector) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sample()
			case <-c.stopCh:
				return
			}
		}
	}()
}

func (c *Collector) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

func (c *Collector) sample() {
	pid, running := c.pidFn()
	if !running {
		c.metrics.SetProcessUsage(0, 0)
		return
	}

	proc, err := process.NewProcess(pid)
	if err != nil {
		c.metrics.SetProcessUsage(0, 0)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		cpuPercent = 0
	}

	var rss uint64
	if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
		rss = memInfo.RSS
	}

	c.metrics.SetProcessUsage(cpuPercent, rss)
}
