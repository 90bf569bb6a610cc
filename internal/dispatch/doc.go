// Package dispatch routes validated job submissions. Queueable
// operations go to the broker with a queued status record; without a
// broker, and always for remux, the job runs inline and the caller
// receives the terminal result synchronously.
package dispatch
