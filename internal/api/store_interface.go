package api

import "github.com/tudoramariei/votemonitor/internal/services"

// Store is everything the HTTP layer needs from persistence. The memory store and the SQL
// store in internal/db both satisfy it.
type Store interface {
	services.FormStore
	services.SubmissionStore
}

var _ Store = (*MemoryStore)(nil)
