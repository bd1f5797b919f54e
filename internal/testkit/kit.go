// Package testkit provides fixtures for tests and demos: synthetic
// connectomes and a service wired to in-memory storage.
package testkit

import (
	"neurodyn/adapters/memory"
	"neurodyn/app"
	"neurodyn/internal"
	"neurodyn/ports"
)

// TestKit bundles a distance-rule service with its in-memory repository
type TestKit struct {
	Repo    ports.RunRepository
	Service *app.DistanceRuleService
}

// NewTestKit creates a service backed by the in-memory run repository with a
// silent logger
func NewTestKit() *TestKit {
	repo := memory.NewRunRepository()
	return &TestKit{
		Repo:    repo,
		Service: app.NewDistanceRuleService(repo, app.WithLogger(internal.NewNopLogger()), app.WithWorkers(4)),
	}
}
