/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hearthlab/hearth/pkg/config"
	"github.com/hearthlab/hearth/pkg/devices"
	"github.com/hearthlab/hearth/pkg/discovery"
	"github.com/hearthlab/hearth/pkg/httpserver"
	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/metrics"
	"github.com/hearthlab/hearth/pkg/models"
	"github.com/hearthlab/hearth/pkg/orchestrator"
	"github.com/hearthlab/hearth/pkg/policy"
	"github.com/hearthlab/hearth/pkg/scan"
	"github.com/hearthlab/hearth/pkg/session"
	"github.com/hearthlab/hearth/pkg/skills"
	"github.com/hearthlab/hearth/pkg/version"
)

func main() {
	if err := run(); err != nil {
		stdlog.Fatalf("Fatal error: %v", err)
	}
}

// defaultPolicy gates the actions that change state outside the hub.
func defaultPolicy() []models.PolicyRule {
	return []models.PolicyRule{
		{Pattern: "docker.*", Factors: []models.Factor{models.FactorPIN}},
		{Pattern: "devices.bulk_control", Factors: []models.Factor{models.FactorPIN}},
		{Pattern: "devices.activate_scene", Factors: []models.Factor{models.FactorPIN}},
	}
}

func run() error {
	configPath := flag.String("config", "/etc/hearth/hearth.json", "Path to hearth config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions := session.NewRegistry(time.Duration(cfg.HeartbeatInterval), log)

	rules := cfg.Policy
	if len(rules) == 0 {
		rules = defaultPolicy()
	}

	policyEngine := policy.NewEngine(rules)
	verifier := policy.NewVerifier(cfg.Auth.PINHash, cfg.Auth.TOTPSecret)

	// the authorizer executes deferred intents through the orchestrator,
	// which itself opens authorizations; bind the cycle through a closure
	var orch *orchestrator.Orchestrator

	authorizer := policy.NewAuthorizer(
		verifier,
		sessions,
		func(sessionID string, intent *models.Intent) {
			orch.Execute(ctx, sessionID, intent)
		},
		cfg.Auth.MaxAttempts,
		time.Duration(cfg.Auth.Timeout),
		time.Duration(cfg.Auth.SweepEvery),
		log,
	)

	orch = orchestrator.New(policyEngine, authorizer, sessions, log)

	// denied and expired handshakes never reach Execute, so they audit
	// through the terminal callback instead
	authorizer.OnTerminal(orch.AuditFailure)

	registry := devices.NewRegistry(nil, time.Duration(cfg.Scan.StaleAfter), log)

	ports := cfg.Scan.Ports
	if len(ports) == 0 {
		ports = scan.DefaultProbePorts
	}

	window := time.Duration(cfg.Scan.ProbeWindow)
	classifier := discovery.NewClassifier(nil)

	engine := discovery.NewEngine(discovery.Config{
		Classifier: classifier,
		SubnetProbes: []scan.Probe{
			scan.NewARPProbe(cfg.Scan.Concurrency, log),
			scan.NewICMPProbe(cfg.Scan.Concurrency, window, log),
			scan.NewMDNSProbe(window, log),
			scan.NewSSDPProbe(window, log),
		},
		HostProbes: []scan.Probe{
			scan.NewTCPProbe(ports, 0, cfg.Scan.Concurrency, log),
			scan.NewBannerProbe(0, log),
			scan.NewSNMPProbe(cfg.Scan.Community, window, log),
			scan.NewRDNSProbe(window, log),
		},
		Store:         registry,
		Events:        sessions,
		DefaultSubnet: cfg.Scan.Subnet,
		Concurrency:   cfg.Scan.Concurrency,
		ProbeWindow:   window,
		ScanTimeout:   time.Duration(cfg.Scan.Timeout),
	}, log)

	monitor := metrics.NewMonitor(sessions, log)

	orch.RegisterSkill(skills.NewNetworkSkill(engine, registry, monitor, classifier, log))
	orch.RegisterSkill(skills.NewDevicesSkill(registry, log))

	// pending authorizations die with their owning session
	sessions.OnDisconnect(authorizer.DropSession)

	sessions.Start(ctx)
	defer sessions.Stop()

	authorizer.Start(ctx)
	defer authorizer.Stop()

	registry.Start(ctx, time.Duration(cfg.Scan.StaleAfter)/2)
	defer registry.Stop()

	defer monitor.Stop()

	server := httpserver.New(cfg.ListenAddr, sessions, orch, authorizer, log)

	errCh := make(chan error, 1)

	go func() {
		errCh <- server.Start()
	}()

	log.Info().Str("addr", cfg.ListenAddr).Str("version", version.Full()).Msg("hearth hub started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")

	return server.Shutdown(context.Background())
}

// loadConfig reads the config file, or starts from bare defaults when the
// file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFile(path)
	if err == nil {
		return cfg, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		cfg = &config.Config{}
		cfg.ApplyDefaults()

		return cfg, nil
	}

	return nil, err
}
