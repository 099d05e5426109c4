// Copyright 2026 The EventSaaS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
	// Provider overrides the global meter provider when set.
	Provider metric.MeterProvider
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New creates a new meter instance
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{
			meter: otel.Meter("noop"),
		}, nil
	}

	if cfg.Provider != nil {
		return &Meter{
			meter: cfg.Provider.Meter(serviceName),
		}, nil
	}

	// Uses the global provider; exporters are configured through OTEL_* env.
	return &Meter{
		meter: otel.Meter(serviceName),
	}, nil
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram creates a new histogram metric
func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}

// Instruments are the application counters. A nil *Instruments records nothing.
type Instruments struct {
	subscriptionBlocked metric.Int64Counter
	ordersApproved      metric.Int64Counter
	resolveCacheHits    metric.Int64Counter
	resolveCacheMisses  metric.Int64Counter
	requestDuration     metric.Float64Histogram
	dbQueryDuration     metric.Float64Histogram
	dbErrors            metric.Int64Counter
}

// NewInstruments registers the application counters on m.
func NewInstruments(m *Meter) (*Instruments, error) {
	var (
		in  Instruments
		err error
	)
	if in.subscriptionBlocked, err = m.CreateCounter("eventsaas.subscription.blocked", "Tenant requests blocked by an inactive subscription"); err != nil {
		return nil, err
	}
	if in.ordersApproved, err = m.CreateCounter("eventsaas.orders.approved", "Orders approved by platform administrators"); err != nil {
		return nil, err
	}
	if in.resolveCacheHits, err = m.CreateCounter("eventsaas.tenant.resolve.cache_hits", "Host lookups served from the domain cache"); err != nil {
		return nil, err
	}
	if in.resolveCacheMisses, err = m.CreateCounter("eventsaas.tenant.resolve.cache_misses", "Host lookups that fell through to the database"); err != nil {
		return nil, err
	}
	if in.requestDuration, err = m.CreateHistogram("eventsaas.http.request.duration", "HTTP request latency per tenant", "ms"); err != nil {
		return nil, err
	}
	if in.dbQueryDuration, err = m.CreateHistogram("eventsaas.db.query.duration", "PostgreSQL query latency by statement kind", "ms"); err != nil {
		return nil, err
	}
	if in.dbErrors, err = m.CreateCounter("eventsaas.db.errors", "PostgreSQL queries that returned an error"); err != nil {
		return nil, err
	}
	return &in, nil
}

// SubscriptionBlocked counts a request turned away for schema.
func (in *Instruments) SubscriptionBlocked(ctx context.Context, schema string) {
	if in == nil {
		return
	}
	in.subscriptionBlocked.Add(ctx, 1, metric.WithAttributes(attribute.String("schema", schema)))
}

// OrdersApproved counts n approved orders.
func (in *Instruments) OrdersApproved(ctx context.Context, n int) {
	if in == nil || n == 0 {
		return
	}
	in.ordersApproved.Add(ctx, int64(n))
}

// ResolveCache records a domain cache hit or miss.
func (in *Instruments) ResolveCache(ctx context.Context, hit bool) {
	if in == nil {
		return
	}
	if hit {
		in.resolveCacheHits.Add(ctx, 1)
		return
	}
	in.resolveCacheMisses.Add(ctx, 1)
}

// RequestDuration records the latency of one request served for schema.
func (in *Instruments) RequestDuration(ctx context.Context, schema string, ms float64) {
	if in == nil {
		return
	}
	in.requestDuration.Record(ctx, ms, metric.WithAttributes(attribute.String("schema", schema)))
}

// DBQuery records one database statement of the given kind.
func (in *Instruments) DBQuery(ctx context.Context, kind string, ms float64, failed bool) {
	if in == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("statement", kind))
	in.dbQueryDuration.Record(ctx, ms, attrs)
	if failed {
		in.dbErrors.Add(ctx, 1, attrs)
	}
}
