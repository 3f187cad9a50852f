package collector

import (
	"context"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/shirou/gopsutil/v3/process"

	"cycleagent/internal/settings"
)

// processSample is one running process whose name is on the watch list.
type processSample struct {
	PID        int32
	Name       string
	CPUPercent float64
	RSS        uint64
}

// ProcessCollector reports whether watched processes are running and what
// they consume. Names match case-insensitively on Windows and exactly elsewhere.
type ProcessCollector struct {
	BaseCollector
	clock           clock.Clock
	caseInsensitive bool
	scan            func(ctx context.Context, watched func(name string) bool) ([]processSample, error)

	mu    sync.Mutex
	names []string
}

// NewProcessCollector creates a new process collector.
func NewProcessCollector() *ProcessCollector {
	return &ProcessCollector{
		BaseCollector:   NewBaseCollector(settings.CollectorProcess),
		clock:           clock.New(),
		caseInsensitive: runtime.GOOS == "windows",
		scan:            scanProcesses,
	}
}

// Configure applies the enable flag and the watch list.
func (c *ProcessCollector) Configure(cfg settings.CollectorConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetEnabled(cfg.Enabled)
	c.names = append([]string(nil), cfg.Processes...)
	return nil
}

func (c *ProcessCollector) key(name string) string {
	if c.caseInsensitive {
		return strings.ToLower(name)
	}
	return name
}

// Collect gathers one status per watched name. A name with no running
// instance is reported with Running false.
func (c *ProcessCollector) Collect(ctx context.Context) (*MetricData, error) {
	c.mu.Lock()
	names := c.names
	c.mu.Unlock()

	statuses := make([]ProcessStatus, 0, len(names))
	index := make(map[string]int, len(names))
	for _, name := range names {
		k := c.key(name)
		if _, dup := index[k]; dup {
			continue
		}
		index[k] = len(statuses)
		statuses = append(statuses, ProcessStatus{Name: name})
	}

	if len(statuses) > 0 {
		samples, err := c.scan(ctx, func(name string) bool {
			_, ok := index[c.key(name)]
			return ok
		})
		if err != nil {
			return nil, err
		}
		for _, s := range samples {
			i, ok := index[c.key(s.Name)]
			if !ok {
				continue
			}
			st := &statuses[i]
			st.Running = true
			st.Instances++
			st.PIDs = append(st.PIDs, s.PID)
			st.CPUPercent += s.CPUPercent
			st.RSSBytes += s.RSS
		}
		for i := range statuses {
			sort.Slice(statuses[i].PIDs, func(a, b int) bool { return statuses[i].PIDs[a] < statuses[i].PIDs[b] })
		}
	}

	return &MetricData{
		Type:      c.Name(),
		Timestamp: c.clock.Now().UTC(),
		Data:      ProcessData{Processes: statuses},
	}, nil
}

// scanProcesses lists running processes and samples the watched ones.
// Processes that exit mid-scan are skipped.
func scanProcesses(ctx context.Context, watched func(name string) bool) ([]processSample, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	var samples []processSample
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" || !watched(name) {
			continue
		}

		s := processSample{PID: p.Pid, Name: name}
		if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
			s.CPUPercent = cpu
		}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			s.RSS = mi.RSS
		}
		samples = append(samples, s)
	}
	return samples, nil
}
