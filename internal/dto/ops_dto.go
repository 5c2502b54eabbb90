package dto

import (
	"ai-bookchat-be/pkg/pipeline"
	"ai-bookchat-be/pkg/progress"
	"ai-bookchat-be/pkg/vectorstore"
)

// Admin-only operational views.

type StorageStatsResponse struct {
	Root  string                  `json:"root"`
	Stats *vectorstore.StoreStats `json:"stats"`
}

type CacheStatsResponse struct {
	Memory   vectorstore.CacheStats `json:"memory"`
	Response ResponseCacheStatsDTO  `json:"response"`
}

type ResponseCacheStatsDTO struct {
	Entries    int `json:"entries"`
	MaxEntries int `json:"max_entries"`
}

type QueueStatsResponse struct {
	Tracked int                `json:"tracked"`
	Jobs    []pipeline.JobInfo `json:"jobs"`
	Bus     progress.BusStats  `json:"bus"`
}
