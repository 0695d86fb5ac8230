package jobs

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a named task run on a cron schedule with seconds precision.
type Job struct {
	Name     string
	Schedule string
	Run      func()
}

type Manager struct {
	cron *cron.Cron
	jobs map[string]Job
}

func NewManager() *Manager {
	return &Manager{
		cron: cron.New(cron.WithSeconds()),
		jobs: make(map[string]Job),
	}
}

func (m *Manager) Register(job Job) error {
	if _, dup := m.jobs[job.Name]; dup {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	_, err := m.cron.AddFunc(job.Schedule, func() { m.run(job) })
	if err != nil {
		return fmt.Errorf("job %s: schedule %q: %w", job.Name, job.Schedule, err)
	}
	m.jobs[job.Name] = job
	return nil
}

// RunNow executes a registered job synchronously, outside its schedule.
func (m *Manager) RunNow(name string) error {
	job, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("job %s not registered", name)
	}
	m.run(job)
	return nil
}

func (m *Manager) Start() {
	log.Printf("[CRON] starting %d jobs", len(m.jobs))
	m.cron.Start()
}

func (m *Manager) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("[CRON] stopped")
}

func (m *Manager) run(job Job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[CRON] job %s panicked: %v", job.Name, r)
		}
	}()
	job.Run()
	log.Printf("[CRON] job %s done in %s", job.Name, time.Since(start).Round(time.Millisecond))
}
