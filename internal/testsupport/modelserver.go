package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// ModelServer is an in-process KServe v2 REST endpoint serving a fake
// classifier. By default class i scores logit i, so the last label wins.
type ModelServer struct {
	*httptest.Server
	Name    string
	Classes int
	Size    int

	// Logits, when set, replaces the default scoring.
	Logits func(input []float32) []float32

	ready  atomic.Bool
	infers atomic.Int64
}

// NewModelServer starts a ready model server and closes it when the test ends.
func NewModelServer(t testing.TB, name string, classes, size int) *ModelServer {
	t.Helper()
	ms := &ModelServer{Name: name, Classes: classes, Size: size}
	ms.ready.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /v2/models/{model}/ready", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("model") != ms.Name || !ms.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /v2/models/{model}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("model") != ms.Name {
			writeModelError(w, http.StatusNotFound, "model not found")
			return
		}
		writeModelJSON(w, map[string]any{
			"name":     ms.Name,
			"versions": []string{"1"},
			"platform": "openvino",
			"inputs": []map[string]any{{
				"name": "pixel_values", "datatype": "FP32", "shape": []int{-1, 3, ms.Size, ms.Size},
			}},
			"outputs": []map[string]any{{
				"name": "logits", "datatype": "FP32", "shape": []int{-1, ms.Classes},
			}},
		})
	})
	mux.HandleFunc("POST /v2/models/{model}/infer", func(w http.ResponseWriter, r *http.Request) {
		ms.infers.Add(1)
		var req struct {
			Inputs []struct {
				Name string    `json:"name"`
				Data []float32 `json:"data"`
			} `json:"inputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Inputs) != 1 {
			writeModelError(w, http.StatusBadRequest, "malformed request")
			return
		}
		data := req.Inputs[0].Data
		if len(data) != 3*ms.Size*ms.Size {
			writeModelError(w, http.StatusBadRequest, "unexpected input size")
			return
		}
		var logits []float32
		if ms.Logits != nil {
			logits = ms.Logits(data)
		} else {
			logits = make([]float32, ms.Classes)
			for i := range logits {
				logits[i] = float32(i)
			}
		}
		writeModelJSON(w, map[string]any{
			"model_name": ms.Name,
			"outputs": []map[string]any{{
				"name": "logits", "datatype": "FP32", "shape": []int{1, len(logits)}, "data": logits,
			}},
		})
	})

	ms.Server = httptest.NewServer(mux)
	t.Cleanup(ms.Server.Close)
	return ms
}

// SetReady toggles the model readiness endpoint.
func (ms *ModelServer) SetReady(ready bool) { ms.ready.Store(ready) }

// InferCalls returns how many inference requests were received.
func (ms *ModelServer) InferCalls() int64 { return ms.infers.Load() }

func writeModelJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeModelError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
