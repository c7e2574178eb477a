package models

// Watcher is a named participant on the watch schedule
type Watcher struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
