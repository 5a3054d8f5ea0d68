package db

import (
	"errors"
	"net/http"

	"github.com/banshee-data/climategrid/internal/httputil"
)

// runsResponse is the JSON body of the runs debug page. Summary floats
// are reported as null when not finite, which JSON cannot encode.
type runsResponse struct {
	Runs []runJSON `json:"runs"`
}

type runJSON struct {
	ID              string   `json:"run_id"`
	CreatedAt       string   `json:"created_at"`
	StationsPath    string   `json:"stations_path"`
	StationsCleaned bool     `json:"stations_cleaned"`
	StationCount    int      `json:"station_count"`
	ValueField      string   `json:"value_field"`
	Points          int      `json:"points"`
	Fallback        int      `json:"fallback"`
	Mean            *float64 `json:"mean"`
	DurationMs      int64    `json:"duration_ms"`
}

func (db *DB) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if id := r.URL.Query().Get("id"); id != "" {
		db.handleRunEstimates(w, r, id)
		return
	}
	runs, err := db.Runs(r.Context())
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	resp := runsResponse{Runs: make([]runJSON, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, runJSON{
			ID:              run.ID,
			CreatedAt:       run.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			StationsPath:    run.StationsPath,
			StationsCleaned: run.StationsCleaned,
			StationCount:    run.StationCount,
			ValueField:      run.ValueField,
			Points:          run.Summary.Count,
			Fallback:        run.Summary.Fallback,
			Mean:            httputil.Finite(run.Summary.Mean),
			DurationMs:      run.Duration.Milliseconds(),
		})
	}
	httputil.WriteJSONOK(w, resp)
}

func (db *DB) handleRunEstimates(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := db.Run(r.Context(), id); errors.Is(err, ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	} else if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	estimates, err := db.RunEstimates(r.Context(), id)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	type point struct {
		X         float64  `json:"x"`
		Y         float64  `json:"y"`
		Value     *float64 `json:"value"`
		Neighbors int      `json:"neighbors"`
	}
	out := make([]point, len(estimates))
	for i, e := range estimates {
		out[i] = point{X: e.X, Y: e.Y, Value: httputil.Finite(e.Value), Neighbors: e.Neighbors}
	}
	httputil.WriteJSONOK(w, out)
}
