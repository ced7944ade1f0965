package parallel

import "sync"

// ForEach executes a for loop with a limited number of concurrent goroutines.
// Each goroutine processes one integer, from 0 to length. The body must only
// write to state owned by index i, which keeps the outcome independent of
// scheduling.
func ForEach(length, limit int, body func(i int)) {
	if limit <= 0 {
		limit = 1 // Default to 1 if limit is zero or negative
	}
	if length <= 0 {
		return // No iterations to perform
	}
	if limit == 1 || length == 1 {
		for i := 0; i < length; i++ {
			body(i)
		}
		return
	}

	sem := make(chan struct{}, limit) // Semaphore with buffer size 'limit'
	var wg sync.WaitGroup
	wg.Add(length)

	for i := 0; i < length; i++ {
		sem <- struct{}{} // Acquire semaphore
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }() // Release semaphore after function exits

			body(i)
		}(i)
	}

	wg.Wait() // Wait for all goroutines to finish
}

// Shards splits length items into at most n contiguous [from, to) ranges of
// near equal size. The split depends only on length and n.
func Shards(length, n int) (out [][2]int) {
	if n <= 0 {
		n = 1
	}
	if n > length {
		n = length
	}
	for s := 0; s < n; s++ {
		out = append(out, [2]int{s * length / n, (s + 1) * length / n})
	}
	return
}
