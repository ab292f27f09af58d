package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/collector-series/collectorhub/internal/pipeline"
	"github.com/robfig/cron/v3"
)

// Job binds one adapter to its own collection interval, since sources update
// at very different rates (quotes every few minutes, papers a few times a day).
type Job struct {
	Source   string
	CronSpec string
}

// Scheduler fires one pipeline run per tick per adapter. Fetch and persist
// happen inside that single run; the pipeline's per-adapter lock makes a tick
// that arrives while the previous run is still going a no-op.
type Scheduler struct {
	cron *cron.Cron
	pipe *pipeline.Pipeline
	jobs []Job
}

func New(jobs []Job, pipe *pipeline.Pipeline) (*Scheduler, error) {
	c := cron.New()
	s := &Scheduler{cron: c, pipe: pipe, jobs: jobs}

	for _, j := range jobs {
		j := j
		if _, err := c.AddFunc(j.CronSpec, func() { s.runOne(j.Source) }); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Cron exposes the underlying cron for extra jobs.
func (s *Scheduler) Cron() *cron.Cron {
	return s.cron
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// Delay the first collection round so startup (migrations, first page
	// loads) is not competing with outbound fetches.
	const startupDelay = 15 * time.Second
	time.AfterFunc(startupDelay, func() {
		go s.RunOnce()
	})
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce triggers one run of every scheduled adapter, for manual collection.
func (s *Scheduler) RunOnce() []pipeline.RunResult {
	log.Println("start collect job...")
	results := s.pipe.RunAll(context.Background())
	log.Println("collect job done (all sources)")
	return results
}

func (s *Scheduler) runOne(name string) {
	res := s.pipe.Run(context.Background(), name)
	if res.Err != nil && !errors.Is(res.Err, pipeline.ErrRunInProgress) {
		log.Printf("scheduled run %s failed: %v", name, res.Err)
	}
}
