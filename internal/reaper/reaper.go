package reaper

import (
	"context"
	"time"

	"github.com/ssuji15/kennel/internal/calendar"
	"github.com/ssuji15/kennel/internal/catalog"
	"github.com/ssuji15/kennel/internal/inspector"
	"github.com/ssuji15/kennel/internal/runtime"
	"github.com/ssuji15/kennel/internal/service/logger"
	"github.com/ssuji15/kennel/model"
)

// Reaper reconciles live gpu-holding sessions against the reservation
// calendar and kills any session without a matching approval. Matching is
// fail-closed: no approval means no permission.
type Reaper struct {
	rt     runtime.Runtime
	insp   *inspector.Inspector
	cat    *catalog.Catalog
	cal    calendar.Calendar
	window time.Duration
}

func New(rt runtime.Runtime, insp *inspector.Inspector, cat *catalog.Catalog, cal calendar.Calendar, window time.Duration) *Reaper {
	return &Reaper{
		rt:     rt,
		insp:   insp,
		cat:    cat,
		cal:    cal,
		window: window,
	}
}

// RunOnce performs a single reconciliation pass and returns the sessions it
// killed. A calendar failure aborts the whole cycle: reaping everything would
// mass-evict users and reaping nothing would bypass the approval gate, so
// neither fallback is acceptable.
func (r *Reaper) RunOnce(ctx context.Context) ([]model.ReapedSession, error) {
	log := logger.FromContext(ctx)

	now := time.Now()
	approvals, err := r.cal.Approvals(ctx, now, now.Add(r.window))
	if err != nil {
		return nil, err
	}

	sessions, err := r.insp.ListSessions(ctx, true)
	if err != nil {
		return nil, err
	}

	var reaped []model.ReapedSession
	for _, session := range sessions {
		// gpu-typed sessions are always in scope; so is any session that
		// holds devices through a request-level gpu count, or it could pin
		// the pool without ever facing the approval gate
		class := r.cat.ClassOf(session.ImageType)
		if !class.GPU && session.GPUCount() == 0 {
			continue
		}
		if approved(session, class, approvals) {
			continue
		}

		if err := r.rt.KillContainer(ctx, session.ID); err != nil {
			log.Error().Err(err).
				Str("container", session.ID).
				Str("user", session.Username).
				Msg("reaper kill failed")
			continue
		}

		log.Info().
			Str("container", session.ID).
			Str("user", session.Username).
			Str("imageType", session.ImageType).
			Msg("reaped unapproved session")
		reaped = append(reaped, model.ReapedSession{
			ID:        session.ID,
			Username:  session.Username,
			ImageType: session.ImageType,
		})
	}
	return reaped, nil
}

// approved reports whether any approval matches the session by exact
// username and environment class.
func approved(session model.Session, class catalog.Class, approvals []model.ApprovalRecord) bool {
	for _, a := range approvals {
		if a.Username == session.Username && a.Environment == class.Environment {
			return true
		}
	}
	return false
}

// Run executes RunOnce on every tick until the context is cancelled. Cycle
// failures are logged and the next tick retries.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) {
	log := logger.FromContext(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("reaper cycle aborted")
			}
		}
	}
}
