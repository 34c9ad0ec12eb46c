package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"resident_directory/internal/app"
	"resident_directory/internal/domain"
	"resident_directory/internal/phone"
)

// Refresher triggers an on-demand refresh cycle.
type Refresher interface {
	Refresh(ctx context.Context) (domain.Snapshot, error)
}

type Handlers struct {
	Q         *app.QueryService
	Refresher Refresher
	Phone     *phone.Normalizer
	ChatText  string // preset WhatsApp message, may be empty
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// residentView is a Resident plus ready-made links, so the UI never has to
// normalize numbers itself.
type residentView struct {
	domain.Resident
	TelLink  string `json:"telLink"`
	ChatLink string `json:"chatLink"`
}

type residentsResponse struct {
	Version   string         `json:"version"`
	FetchedAt time.Time      `json:"fetchedAt"`
	Count     int            `json:"count"`
	Items     []residentView `json:"items"`
}

type contactView struct {
	Role     string `json:"role"`
	Phone    string `json:"phone"`
	TelLink  string `json:"telLink"`
	ChatLink string `json:"chatLink"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/residents", h.listResidents)
	s.mux.Get("/v1/summary", h.getSummary)
	s.mux.Get("/v1/emergency", h.getEmergency)
	s.mux.Post("/v1/refresh", h.refresh)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeQueryError maps read-side errors; only a missing snapshot is expected.
func writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, app.ErrNoSnapshot) {
		w.Header().Set("Retry-After", "5")
		writeProblem(w, http.StatusServiceUnavailable, "Directory Not Ready", "the feed has not been loaded yet")
		return
	}
	log.Error().Err(err).Msg("query failed")
	writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeJSON writes v with an ETag, answering 304 when the client has it.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func (h *Handlers) listResidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := domain.QueryOptions{
		Search:     q.Get("q"),
		RoleFilter: q.Get("role"),
		SortKey:    q.Get("sort"),
	}
	if opts.RoleFilter == "" {
		opts.RoleFilter = domain.RoleAll
	}

	page, err := h.Q.Residents(r.Context(), opts)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	out := residentsResponse{
		Version:   page.Version,
		FetchedAt: page.FetchedAt,
		Count:     len(page.Items),
		Items:     make([]residentView, 0, len(page.Items)),
	}
	for _, res := range page.Items {
		chat := res.WhatsApp
		if chat == "" {
			chat = res.Phone
		}
		out.Items = append(out.Items, residentView{
			Resident: res,
			TelLink:  h.Phone.TelLink(res.Phone),
			ChatLink: h.Phone.ChatLink(chat, h.ChatText),
		})
	}
	writeJSON(w, r, out)
}

func (h *Handlers) getSummary(w http.ResponseWriter, r *http.Request) {
	sv, err := h.Q.Summary(r.Context())
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, r, sv)
}

func (h *Handlers) getEmergency(w http.ResponseWriter, r *http.Request) {
	ec, err := h.Q.Emergency(r.Context())
	if err != nil {
		writeQueryError(w, err)
		return
	}
	out := make([]contactView, 0, 5)
	for _, c := range []struct{ role, raw string }{
		{"president", ec.President},
		{"lift", ec.Lift},
		{"electrician", ec.Electrician},
		{"plumber", ec.Plumber},
		{"rickshaw", ec.Rickshaw},
	} {
		out = append(out, contactView{
			Role:     c.role,
			Phone:    c.raw,
			TelLink:  h.Phone.TelLink(c.raw),
			ChatLink: h.Phone.ChatLink(c.raw, ""),
		})
	}
	writeJSON(w, r, out)
}

func (h *Handlers) refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Refresher.Refresh(r.Context())
	switch {
	case errors.Is(err, app.ErrRefreshInFlight):
		writeProblem(w, http.StatusConflict, "Refresh In Progress", "a refresh is already running")
		return
	case err != nil:
		// previous snapshot keeps being served
		writeProblem(w, http.StatusBadGateway, "Feed Unavailable", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]any{
		"version":   snap.Version,
		"fetchedAt": snap.FetchedAt,
		"records":   len(snap.Records),
	}); err != nil {
		log.Error().Err(err).Msg("failed to write refresh body")
	}
}
