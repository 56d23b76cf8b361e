package signal

import (
	"context"

	"github.com/dkeye/lobby/internal/adapters/ws"
	"github.com/dkeye/lobby/internal/core"
	"github.com/dkeye/lobby/internal/domain"
	"github.com/dkeye/lobby/internal/metrics"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) readPump(ctx context.Context, id domain.Identity, conn *ws.Conn) {
	defer func() {
		log.Info().Str("module", "signal").Str("identity", string(id)).Msg("readPump closing")
		ctl.detach(id)
		ctl.limiter.Forget(id)
		if ctl.handler != nil {
			ctl.handler.OnDisconnect(id)
		}
	}()
	conn.ReadPump(ctx, ctl.opts.ReadLimit, ctl.opts.PingPeriod, func(env core.Envelope) {
		ctl.handleMessage(id, env)
	})
}

func (ctl *Controller) handleMessage(id domain.Identity, env core.Envelope) {
	if !ctl.limiter.Allow(id) {
		log.Warn().Str("module", "signal").Str("identity", string(id)).Msg("rate limit exceeded, dropping message")
		ctl.metrics.ObserveDrop(metrics.DropRateLimited)
		return
	}
	if ctl.handler == nil {
		log.Error().Str("module", "signal").Msg("no command handler bound")
		return
	}
	ctl.handler.OnCommandMessage(id, env)
}
