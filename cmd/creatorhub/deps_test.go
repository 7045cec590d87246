// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package main

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/creatorhub/creatorhub/internal/config"
	"github.com/creatorhub/creatorhub/internal/observability"
)

// isolatedConfig ignores the process environment and any .env file.
var isolatedConfig = config.Options{
	EnvFiles:    []string{},
	Environment: map[string]string{},
}

// mockMigrator implements both AutoMigrator and Migrator.
type mockMigrator struct {
	upCalls    int
	upErr      error
	downCalls  int
	downErr    error
	version    uint
	dirty      bool
	versionErr error
	forced     *int
	forceErr   error
	pending    []uint
	pendingErr error
	closed     bool
	closeErr   error
}

func (m *mockMigrator) Up() error {
	m.upCalls++
	return m.upErr
}

func (m *mockMigrator) Down() error {
	m.downCalls++
	return m.downErr
}

func (m *mockMigrator) Version() (uint, bool, error) {
	return m.version, m.dirty, m.versionErr
}

func (m *mockMigrator) Force(version int) error {
	m.forced = &version
	return m.forceErr
}

func (m *mockMigrator) PendingMigrations() ([]uint, error) {
	return m.pending, m.pendingErr
}

func (m *mockMigrator) Close() error {
	m.closed = true
	return m.closeErr
}

// mockObservabilityServer records its lifecycle and the readiness checker it
// was built with.
type mockObservabilityServer struct {
	mu        sync.Mutex
	addr      string
	readiness observability.ReadinessChecker
	startErr  error
	errCh     chan error
	started   bool
	stopped   bool
	metrics   *observability.Metrics
}

func newMockObservabilityServer() *mockObservabilityServer {
	return &mockObservabilityServer{
		addr:    "127.0.0.1:9100",
		errCh:   make(chan error, 1),
		metrics: observability.NewMetrics(prometheus.NewRegistry()),
	}
}

func (m *mockObservabilityServer) Start() (<-chan error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.started = true
	return m.errCh, nil
}

func (m *mockObservabilityServer) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockObservabilityServer) Addr() string { return m.addr }

func (m *mockObservabilityServer) Metrics() *observability.Metrics { return m.metrics }

func (m *mockObservabilityServer) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// stubPictures accepts every upload.
type stubPictures struct{}

func (stubPictures) Put(_ context.Context, key, _, _ string, _ []byte) (string, error) {
	return key, nil
}
