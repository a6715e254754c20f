package cache

import "errors"

var ErrNotFound = errors.New("cache entry not found")

// Media is the cached result of resolving a source url.
type Media struct {
	Url   string `json:"url"`
	Title string `json:"title"`
	Kind  string `json:"kind"`
}
