package checks

import (
	"context"

	"essync/core/mirror"
)

// SearchReport is the result of a search engine check for one database.
type SearchReport struct {
	Database    string `json:"database"`
	Index       string `json:"index,omitempty"`
	Address     string `json:"address,omitempty"`
	ClusterName string `json:"cluster_name,omitempty"`
	Status      string `json:"status"` // "ok", "error"
	Error       string `json:"error,omitempty"`
}

// CheckSearch connects database to its search engine and pings it.
func CheckSearch(ctx context.Context, registry *mirror.Registry, database string) *SearchReport {
	report := &SearchReport{Database: database, Status: "ok"}

	b, err := registry.Get(ctx, database)
	if err != nil {
		report.Status = "error"
		report.Error = err.Error()
		return report
	}
	report.Index = b.Index
	report.Address = b.Config.Address
	report.ClusterName = b.Endpoint.ClusterName

	if err := b.Sink.Ping(ctx); err != nil {
		report.Status = "error"
		report.Error = err.Error()
	}
	return report
}
