package bench

import "sync"

// Job is one unit of pooled work.
type Job func() error

// RunPool executes jobs on a fixed set of at most maxWorkers goroutines
// and returns every error the jobs produced. Error order is unspecified.
func RunPool(maxWorkers int, jobs []Job) []error {
	if len(jobs) == 0 {
		return nil
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if maxWorkers > len(jobs) {
		maxWorkers = len(jobs)
	}

	queue := make(chan Job)
	// One error slice per worker; merged after the pool drains, so no
	// lock is needed on the hot path.
	perWorker := make([][]error, maxWorkers)

	var wg sync.WaitGroup
	for w := 0; w < maxWorkers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for job := range queue {
				if err := job(); err != nil {
					perWorker[w] = append(perWorker[w], err)
				}
			}
		}(w)
	}

	for _, job := range jobs {
		queue <- job
	}
	close(queue)
	wg.Wait()

	var errs []error
	for _, we := range perWorker {
		errs = append(errs, we...)
	}
	return errs
}
