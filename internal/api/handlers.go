package api

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"NewsAtlas/internal/domain"
	"NewsAtlas/internal/ports"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// CoordinateLookup places a canonical country name on the map.
type CoordinateLookup interface {
	Coordinates(name string) (lat, lon float64, ok bool)
}

// Handlers serves the read-only dashboard endpoints.
type Handlers struct {
	store  ports.RecordStore
	coords CoordinateLookup
	jitter float64
	random func() float64
	now    func() time.Time
	logger *slog.Logger
}

// NewHandlers wires the record store and coordinate table. jitter is the
// maximum marker offset in degrees; zero disables it.
func NewHandlers(store ports.RecordStore, coords CoordinateLookup, jitter float64, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		store:  store,
		coords: coords,
		jitter: jitter,
		random: rand.Float64,
		now:    time.Now,
		logger: log,
	}
}

// MessagesResponse wraps a page of records.
type MessagesResponse struct {
	Messages []domain.EnrichedRecord `json:"messages"`
	Count    int                     `json:"count"`
}

// Marker is a record positioned on the map.
type Marker struct {
	ID        int64            `json:"id"`
	Country   string           `json:"country"`
	Lat       float64          `json:"lat"`
	Lon       float64          `json:"lon"`
	Content   string           `json:"content"`
	Sentiment domain.Sentiment `json:"sentiment"`
	Themes    []string         `json:"themes"`
	CreatedAt time.Time        `json:"created_at"`
}

// MarkersResponse wraps the markers of a page of records.
type MarkersResponse struct {
	Markers []Marker `json:"markers"`
	Count   int      `json:"count"`
}

// Health reports liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListMessages returns records newest first.
func (h *Handlers) ListMessages(c *gin.Context) {
	records, ok := h.list(c)
	if !ok {
		return
	}
	if records == nil {
		records = []domain.EnrichedRecord{}
	}
	c.JSON(http.StatusOK, MessagesResponse{Messages: records, Count: len(records)})
}

// ListMarkers returns records with jittered coordinates of their country.
// Records whose country cannot be placed are left out.
func (h *Handlers) ListMarkers(c *gin.Context) {
	records, ok := h.list(c)
	if !ok {
		return
	}

	markers := make([]Marker, 0, len(records))
	for _, rec := range records {
		lat, lon, found := h.coords.Coordinates(rec.Country)
		if !found {
			continue
		}
		markers = append(markers, Marker{
			ID:        rec.ID,
			Country:   rec.Country,
			Lat:       lat + h.offset(),
			Lon:       lon + h.offset(),
			Content:   rec.Content,
			Sentiment: rec.Sentiment,
			Themes:    rec.Themes,
			CreatedAt: rec.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, MarkersResponse{Markers: markers, Count: len(markers)})
}

func (h *Handlers) list(c *gin.Context) ([]domain.EnrichedRecord, bool) {
	opts, err := h.listOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	records, err := h.store.ListAll(c.Request.Context(), opts)
	if err != nil {
		h.logger.Error("list records failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}
	return records, true
}

// listOptions reads ?since= (a duration such as 1h, or an RFC 3339 time) and ?limit=.
func (h *Handlers) listOptions(c *gin.Context) (domain.ListOptions, error) {
	opts := domain.ListOptions{Limit: defaultLimit}

	if raw := c.Query("since"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			if d < 0 {
				return opts, errors.New("since must not be negative")
			}
			opts.Since = h.now().Add(-d)
		} else if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			opts.Since = ts
		} else {
			return opts, errors.New("since must be a duration like 1h or an RFC 3339 time")
		}
	}

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return opts, errors.New("limit must be a positive integer")
		}
		opts.Limit = min(n, maxLimit)
	}

	return opts, nil
}

func (h *Handlers) offset() float64 {
	if h.jitter <= 0 {
		return 0
	}
	return (h.random()*2 - 1) * h.jitter
}
