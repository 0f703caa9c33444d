package api

import (
	"net/http"
	"time"

	"roombalink/internal/store"
)

type sampleResponse struct {
	At             string `json:"at"`
	BatteryPercent int    `json:"batteryPercent"`
	BinFull        bool   `json:"binFull"`
	Phase          string `json:"phase"`
	ErrorCode      int    `json:"errorCode"`
}

type hourlyResponse struct {
	Hour            string  `json:"hour"`
	BatteryMin      int     `json:"batteryMin"`
	BatteryMax      int     `json:"batteryMax"`
	BatteryAvg      float64 `json:"batteryAvg"`
	Samples         int     `json:"samples"`
	CleaningSamples int     `json:"cleaningSamples"`
}

func (s *Server) handleTelemetrySamples(w http.ResponseWriter, r *http.Request) {
	since := sinceFromQuery(r, 24*time.Hour)
	limit := parseIntDefault(r.URL.Query().Get("limit"), 200)
	samples, err := s.store.ListSamples(r.Context(), since, limit)
	if err != nil {
		s.logger.Error("list telemetry samples", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list samples")
		return
	}
	resp := make([]sampleResponse, 0, len(samples))
	for _, sample := range samples {
		resp = append(resp, sampleToResponse(sample))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTelemetryHourly(w http.ResponseWriter, r *http.Request) {
	since := sinceFromQuery(r, 7*24*time.Hour)
	aggregates, err := s.store.ListHourly(r.Context(), since)
	if err != nil {
		s.logger.Error("list hourly telemetry", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list hourly telemetry")
		return
	}
	resp := make([]hourlyResponse, 0, len(aggregates))
	for _, agg := range aggregates {
		resp = append(resp, hourlyResponse{
			Hour:            agg.Hour.UTC().Format(time.RFC3339),
			BatteryMin:      agg.BatteryMin,
			BatteryMax:      agg.BatteryMax,
			BatteryAvg:      agg.BatteryAvg,
			Samples:         agg.Samples,
			CleaningSamples: agg.CleaningSamples,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func sampleToResponse(sample *store.Sample) sampleResponse {
	return sampleResponse{
		At:             sample.At.UTC().Format(time.RFC3339),
		BatteryPercent: sample.BatteryPercent,
		BinFull:        sample.BinFull,
		Phase:          sample.Phase,
		ErrorCode:      sample.ErrorCode,
	}
}

// sinceFromQuery reads since_ms (epoch milliseconds) with a relative default.
func sinceFromQuery(r *http.Request, fallback time.Duration) time.Time {
	if value := r.URL.Query().Get("since_ms"); value != "" {
		if ms := parseIntDefault(value, 0); ms > 0 {
			return time.UnixMilli(int64(ms))
		}
	}
	return time.Now().Add(-fallback)
}
