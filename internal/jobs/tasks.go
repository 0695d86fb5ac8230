package jobs

import "log"

// Sweeper drops expired cache entries and reports how many it removed.
type Sweeper interface {
	Sweep() int
}

const (
	CacheSweepJob  = "cache_sweep"
	HealthProbeJob = "health_probe"
)

func CacheSweep(schedule string, s Sweeper) Job {
	return Job{
		Name:     CacheSweepJob,
		Schedule: schedule,
		Run: func() {
			if n := s.Sweep(); n > 0 {
				log.Printf("[CRON] cache sweep dropped %d entries", n)
			}
		},
	}
}

// HealthProbe refreshes a health status on a schedule.
func HealthProbe(schedule string, probe func()) Job {
	return Job{Name: HealthProbeJob, Schedule: schedule, Run: probe}
}
