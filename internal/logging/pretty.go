package logging

import (
	"fmt"
	"sync"
	"time"
)

// Pretty is a human-facing progress renderer for CLI runs, adapted from the
// teacher's Logger: same phase-banner/task-progress shape, generalized to
// track pipeline stages (Clarifier, Translator, ... Repair) instead of
// benchmark eval tasks.
type Pretty struct {
	mu          sync.Mutex
	startTime   time.Time
	stages      map[string]*stageProgress
	order       []string
	quiet       bool
}

type stageProgress struct {
	Name      string
	Status    string // pending, running, done, failed, skipped
	StartTime time.Time
	EndTime   time.Time
	Detail    string
}

func NewPretty(quiet bool) *Pretty {
	return &Pretty{startTime: time.Now(), stages: make(map[string]*stageProgress), quiet: quiet}
}

func (p *Pretty) StartStage(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stages[name] = &stageProgress{Name: name, Status: "running", StartTime: time.Now()}
	p.order = append(p.order, name)
	if !p.quiet {
		fmt.Printf("[%s] started\n", name)
	}
}

func (p *Pretty) FinishStage(name, detail string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.stages[name]
	if !ok {
		return
	}
	s.Status = "done"
	s.EndTime = time.Now()
	s.Detail = detail
	if !p.quiet {
		fmt.Printf("[%s] done (%.2fs) %s\n", name, s.EndTime.Sub(s.StartTime).Seconds(), detail)
	}
}

func (p *Pretty) SkipStage(name, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stages[name] = &stageProgress{Name: name, Status: "skipped", Detail: reason}
	p.order = append(p.order, name)
	if !p.quiet {
		fmt.Printf("[%s] skipped: %s\n", name, reason)
	}
}

func (p *Pretty) FailStage(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.stages[name]
	if !ok {
		s = &stageProgress{Name: name, StartTime: time.Now()}
		p.stages[name] = s
		p.order = append(p.order, name)
	}
	s.Status = "failed"
	s.EndTime = time.Now()
	s.Detail = err.Error()
	if !p.quiet {
		fmt.Printf("[%s] failed: %v\n", name, err)
	}
}

func (p *Pretty) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := fmt.Sprintf("total %.2fs\n", time.Since(p.startTime).Seconds())
	for _, name := range p.order {
		s := p.stages[name]
		out += fmt.Sprintf("  %-12s %-8s %s\n", s.Name, s.Status, s.Detail)
	}
	return out
}
