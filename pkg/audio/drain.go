package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Use this to release a producer goroutine when a streaming channel is
// abandoned mid-way (e.g. after an error cut a synthesis short).
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
