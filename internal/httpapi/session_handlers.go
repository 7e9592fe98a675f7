package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/DavidYu75/intreview/internal/analysis"
	"github.com/DavidYu75/intreview/internal/session"
	"github.com/DavidYu75/intreview/internal/store"
)

const historyLimit = 100

// handleStartSession creates a new Active session owned by the caller.
func (r *Router) handleStartSession(w http.ResponseWriter, req *http.Request) {
	owner := ownerID(req)

	s, err := r.sessions.Start(owner)
	switch {
	case errors.Is(err, session.ErrDraining):
		http.Error(w, `{"error": "server is shutting down"}`, http.StatusServiceUnavailable)
		return
	case errors.Is(err, session.ErrTooManySessions):
		http.Error(w, `{"error": "too many active sessions"}`, http.StatusTooManyRequests)
		return
	case err != nil:
		r.logger.Printf("sessions: start failed: %v", err)
		http.Error(w, `{"error": "failed to start session"}`, http.StatusInternalServerError)
		return
	}

	r.persistSession(req.Context(), s.Info())
	writeJSON(w, http.StatusOK, map[string]string{"session_id": s.ID()})
}

// handleGetSession returns a live session's state, or the stored record
// of one that is no longer in memory.
func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	owner := ownerID(req)

	if s, err := r.sessions.Get(id, owner); err == nil {
		writeJSON(w, http.StatusOK, s.Info())
		return
	}

	rec, err := r.storedSession(req.Context(), id, owner)
	if err != nil {
		r.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infoFromRecord(*rec))
}

// handleEndSession finalizes the session and returns the report. Ending an
// already ended session returns the same report.
func (r *Router) handleEndSession(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	s, err := r.sessions.Get(id, ownerID(req))
	if err != nil {
		http.Error(w, `{"error": "session not found"}`, http.StatusNotFound)
		return
	}

	report, err := s.Finalize(req.Context())
	if err != nil {
		captureError(req, err, "sessions: finalize failed")
		http.Error(w, `{"error": "session failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report.Envelope())
}

// handleGetReport returns the final report from memory or the store.
func (r *Router) handleGetReport(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	owner := ownerID(req)

	if s, err := r.sessions.Get(id, owner); err == nil {
		report, err := s.Report()
		switch {
		case errors.Is(err, session.ErrSessionActive):
			http.Error(w, `{"error": "session is still active"}`, http.StatusConflict)
		case errors.Is(err, session.ErrSessionFailed):
			http.Error(w, `{"error": "session failed"}`, http.StatusInternalServerError)
		case err != nil:
			http.Error(w, `{"error": "failed to load report"}`, http.StatusInternalServerError)
		default:
			writeJSON(w, http.StatusOK, report.Envelope())
		}
		return
	}

	if _, err := r.storedSession(req.Context(), id, owner); err != nil {
		r.writeLookupError(w, err)
		return
	}
	report, err := r.store.GetReport(req.Context(), id)
	if err != nil {
		r.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Envelope())
}

// handleListSessions returns the caller's live sessions followed by stored
// sessions that are no longer in memory.
func (r *Router) handleListSessions(w http.ResponseWriter, req *http.Request) {
	owner := ownerID(req)
	out := r.sessions.List(owner)

	if r.store != nil {
		recs, err := r.store.ListSessions(req.Context(), owner, historyLimit)
		if err != nil {
			r.logger.Printf("sessions: list failed: %v", err)
			http.Error(w, `{"error": "failed to list sessions"}`, http.StatusInternalServerError)
			return
		}
		seen := make(map[string]bool, len(out))
		for _, info := range out {
			seen[info.ID] = true
		}
		for _, rec := range recs {
			if !seen[rec.ID] {
				out = append(out, infoFromRecord(rec))
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

var errNoStore = errors.New("no store configured")

func (r *Router) storedSession(ctx context.Context, id, owner string) (*store.SessionRecord, error) {
	if r.store == nil {
		return nil, errNoStore
	}
	rec, err := r.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner != "" && rec.OwnerID != owner {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (r *Router) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, errNoStore) {
		http.Error(w, `{"error": "session not found"}`, http.StatusNotFound)
		return
	}
	r.logger.Printf("sessions: lookup failed: %v", err)
	http.Error(w, `{"error": "failed to load session"}`, http.StatusInternalServerError)
}

// persistSession records the session row. Failures are logged only; the
// live session does not depend on the store.
func (r *Router) persistSession(ctx context.Context, info session.Info) {
	if r.store == nil {
		return
	}
	err := r.store.UpsertSession(ctx, store.SessionRecord{
		ID:        info.ID,
		OwnerID:   info.Owner,
		Status:    string(info.Status),
		StartedAt: info.StartedAt,
		EndedAt:   info.EndedAt,
	})
	if err != nil {
		r.logger.Printf("sessions: failed to persist %s: %v", info.ID, err)
	}
}

func infoFromRecord(rec store.SessionRecord) session.Info {
	return session.Info{
		ID:        rec.ID,
		Owner:     rec.OwnerID,
		Status:    session.Status(rec.Status),
		StartedAt: rec.StartedAt,
		EndedAt:   rec.EndedAt,
	}
}

// lastKnownVisual is what a summary reports for a session whose finalize
// failed: the metrics folded so far.
func lastKnownVisual(s *session.Session, report *analysis.Report) analysis.VisualMetrics {
	if report != nil {
		return report.Visual
	}
	return s.VisualSnapshot()
}
