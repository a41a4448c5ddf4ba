// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/fieldtrack/internal/logging"
)

// Layer names a child supervisor.
type Layer string

const (
	LayerData      Layer = "data-layer"
	LayerMessaging Layer = "messaging-layer"
	LayerAPI       Layer = "api-layer"
)

// ErrUnknownLayer is returned by Add for a layer the tree does not have.
var ErrUnknownLayer = errors.New("unknown supervisor layer")

// TreeConfig tunes restart behaviour. Zero fields take suture's defaults.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultTreeConfig returns suture's documented defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c TreeConfig) withDefaults() TreeConfig {
	d := DefaultTreeConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureDecay <= 0 {
		c.FailureDecay = d.FailureDecay
	}
	if c.FailureBackoff <= 0 {
		c.FailureBackoff = d.FailureBackoff
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

func (c TreeConfig) spec(hook suture.EventHook) suture.Spec {
	return suture.Spec{
		EventHook:        hook,
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		Timeout:          c.ShutdownTimeout,
	}
}

// Tree is the root supervisor plus its three layers.
type Tree struct {
	root   *suture.Supervisor
	layers map[Layer]*suture.Supervisor
	config TreeConfig
}

// NewTree builds the supervisor hierarchy. A nil logger routes supervisor
// events to the global zerolog logger.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	if logger == nil {
		logger = logging.NewSlogLogger()
	}
	config = config.withDefaults()

	// MustHook has a pointer receiver.
	hook := (&sutureslog.Handler{Logger: logger}).MustHook()

	root := suture.New("fieldtrack", config.spec(hook))
	t := &Tree{
		root:   root,
		layers: make(map[Layer]*suture.Supervisor, 3),
		config: config,
	}
	// Children inherit the root's event hook once added.
	for _, name := range []Layer{LayerData, LayerMessaging, LayerAPI} {
		child := suture.New(string(name), config.spec(nil))
		root.Add(child)
		t.layers[name] = child
	}
	return t
}

// Add registers svc under the named layer.
func (t *Tree) Add(layer Layer, svc suture.Service) (suture.ServiceToken, error) {
	sup, ok := t.layers[layer]
	if !ok {
		return suture.ServiceToken{}, fmt.Errorf("%w: %s", ErrUnknownLayer, layer)
	}
	return sup.Add(svc), nil
}

// Config returns the effective configuration.
func (t *Tree) Config() TreeConfig {
	return t.config
}

// Serve blocks until ctx is canceled or the root supervisor gives up.
// Services that outlive the shutdown timeout are logged.
func (t *Tree) Serve(ctx context.Context) error {
	err := t.root.Serve(ctx)
	t.reportUnstopped()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ServeBackground starts the tree and returns its exit channel.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// Remove stops a service and waits up to timeout for it to exit.
func (t *Tree) Remove(layer Layer, token suture.ServiceToken, timeout time.Duration) error {
	sup, ok := t.layers[layer]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLayer, layer)
	}
	return sup.RemoveAndWait(token, timeout)
}

func (t *Tree) reportUnstopped() {
	report, err := t.root.UnstoppedServiceReport()
	if err != nil {
		logging.Warn().Err(err).Msg("Could not collect unstopped service report")
		return
	}
	for _, svc := range report {
		logging.Warn().Str("service", svc.Name).Msg("Service did not stop within shutdown timeout")
	}
}
