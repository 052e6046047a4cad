// Package pipeline wires probes, the detection engine, the response
// engine, and the telemetry sink into the running system, and owns its
// graceful shutdown.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vigil-edr/vigil/internal/bus"
	"github.com/vigil-edr/vigil/internal/detection"
	"github.com/vigil-edr/vigil/internal/events"
	"github.com/vigil-edr/vigil/internal/probes"
	"github.com/vigil-edr/vigil/internal/response"
	"github.com/vigil-edr/vigil/internal/telemetry"
)

// drainTimeout bounds how long shutdown waits for the pipeline stages to
// return once ctx is cancelled.
const drainTimeout = 5 * time.Second

// responseRecord pairs a dispatched response result with the threat that
// triggered it; response.Result itself carries no threat id, so the
// response bus carries this wrapper instead of a bare response.Result.
type responseRecord struct {
	ThreatID string
	Result   response.Result
}

// Pipeline is the top-level assembly: probes → event bus → detection
// engine → threat bus → response engine → response bus → telemetry sink,
// with every event, threat, and response result persisted along the way.
type Pipeline struct {
	Sources         []probes.Source
	Engine          *detection.Engine
	Response        *response.Engine
	Sink            *telemetry.Sink
	correlationTick time.Duration

	EventBus    *bus.Bus[events.Event]
	ThreatBus   *bus.Bus[events.Threat]
	ResponseBus *bus.Bus[responseRecord]

	wg sync.WaitGroup
}

// New assembles a pipeline with bounded buses (event bus 1000, threat bus
// 100, response bus 100), ticking the correlator on correlationTick.
func New(engine *detection.Engine, resp *response.Engine, sink *telemetry.Sink, correlationTick time.Duration, sources ...probes.Source) *Pipeline {
	return &Pipeline{
		Sources:         sources,
		Engine:          engine,
		Response:        resp,
		Sink:            sink,
		correlationTick: correlationTick,
		EventBus:        bus.New[events.Event](1000),
		ThreatBus:       bus.New[events.Threat](100),
		ResponseBus:     bus.New[responseRecord](100),
	}
}

// Run starts every probe and the detection/response loop, and blocks until
// ctx is cancelled. On cancellation each stage returns once the item it is
// handling is done; items still queued on the buses are not processed. Run
// waits up to drainTimeout for the stages to return, then closes the buses.
func (p *Pipeline) Run(ctx context.Context) {
	for _, src := range p.Sources {
		src := src
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if err := src.Run(ctx, p.EventBus); err != nil {
				log.Error().Err(err).Msg("probe exited with error")
			}
		}()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runDetection(ctx)
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runResponse(ctx)
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runSink(ctx)
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown requested, draining pipeline")

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-drainCtx.Done():
		log.Warn().Msg("drain timeout exceeded, forcing shutdown")
	}

	p.EventBus.Close()
	p.ThreatBus.Close()
	p.ResponseBus.Close()
}

func (p *Pipeline) runDetection(ctx context.Context) {
	ticker := time.NewTicker(p.correlationTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-p.EventBus.Chan():
			if !ok {
				return
			}
			if err := p.Sink.LogEvent(ev); err != nil {
				log.Error().Err(err).Msg("failed to persist event, continuing")
			}
			if threat, emit := p.Engine.ProcessEvent(ev); emit {
				p.emitThreat(ctx, threat)
			}
		case <-ticker.C:
			for _, threat := range p.Engine.CheckCorrelations() {
				p.emitThreat(ctx, threat)
			}
		}
	}
}

func (p *Pipeline) emitThreat(ctx context.Context, threat events.Threat) {
	if err := p.Sink.LogThreat(threat); err != nil {
		log.Error().Err(err).Str("threat_id", threat.ID).Msg("failed to persist threat, continuing")
	}
	if err := p.ThreatBus.Send(ctx, threat); err != nil {
		log.Warn().Err(err).Str("threat_id", threat.ID).Msg("failed to enqueue threat for response")
	}
}

func (p *Pipeline) runResponse(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case threat, ok := <-p.ThreatBus.Chan():
			if !ok {
				return
			}
			for _, result := range p.Response.HandleThreat(ctx, threat) {
				rec := responseRecord{ThreatID: threat.ID, Result: result}
				if err := p.ResponseBus.Send(ctx, rec); err != nil {
					log.Warn().Err(err).Str("threat_id", threat.ID).Msg("failed to enqueue response result for telemetry")
				}
			}
		}
	}
}

// runSink drains the response bus and persists each result, decoupling
// response dispatch from telemetry I/O the same way event/threat
// persistence is decoupled from detection.
func (p *Pipeline) runSink(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-p.ResponseBus.Chan():
			if !ok {
				return
			}
			if err := p.Sink.LogResponse(rec.ThreatID, rec.Result); err != nil {
				log.Error().Err(err).Str("threat_id", rec.ThreatID).Msg("failed to persist response result")
			}
		}
	}
}
