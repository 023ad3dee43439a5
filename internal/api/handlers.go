package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/bdnb-api/internal/building"
	"github.com/sells-group/bdnb-api/internal/model"
	"github.com/sells-group/bdnb-api/internal/project"
	"github.com/sells-group/bdnb-api/internal/resolve"
	"github.com/sells-group/bdnb-api/internal/store"
)

// errBadParam is wrapped by query parameter parsing errors.
var errBadParam = eris.New("invalid query parameter")

const contentTypeGeoJSON = "application/geo+json"

func (h *Handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"greeting": "Hello world"})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getBBox handles GET /getbbox?xmin=&xmax=&ymin=&ymax=[&mode=].
func (h *Handler) getBBox(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var bbox model.BBox
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"xmin", &bbox.XMin},
		{"xmax", &bbox.XMax},
		{"ymin", &bbox.YMin},
		{"ymax", &bbox.YMax},
	} {
		v, err := floatParam(q.Get(p.name), p.name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		*p.dst = v
	}

	mode, err := project.ParseMode(q.Get("mode"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	fc, err := h.svc.ByBBox(r.Context(), bbox, mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeFeatures(w, fc)
}

// getAddress handles GET /getaddress?address=&radius=[&mode=].
func (h *Handler) getAddress(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	raw := strings.TrimSpace(q.Get("radius"))
	if raw == "" {
		writeError(w, r, eris.Wrap(errBadParam, "radius is required"))
		return
	}
	radius, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, eris.Wrapf(errBadParam, "radius %q is not an integer", raw))
		return
	}

	mode, err := project.ParseMode(q.Get("mode"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	fc, err := h.svc.ByAddress(r.Context(), q.Get("address"), radius, mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeFeatures(w, fc)
}

func floatParam(raw, name string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, eris.Wrapf(errBadParam, "%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, eris.Wrapf(errBadParam, "%s %q is not a number", name, raw)
	}
	return v, nil
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case eris.Is(err, errBadParam),
		eris.Is(err, model.ErrInvalidBBox),
		eris.Is(err, resolve.ErrInvalidRadius),
		eris.Is(err, project.ErrUnknownMode):
		return http.StatusBadRequest
	case eris.Is(err, resolve.ErrGeocodeNotFound):
		return http.StatusNotFound
	case eris.Is(err, building.ErrAddressDisabled):
		return http.StatusNotImplemented
	case eris.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	case eris.Is(err, building.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	fields := []zap.Field{
		zap.String("request_id", r.Header.Get(requestIDHeader)),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}

	switch status {
	case http.StatusServiceUnavailable:
		zap.L().Error("api: dataset unavailable", fields...)
		msg = "building dataset unavailable"
	case http.StatusGatewayTimeout:
		zap.L().Warn("api: query timed out", fields...)
		msg = "query timed out"
	case http.StatusInternalServerError:
		zap.L().Error("api: request failed", fields...)
		msg = "internal error"
	default:
		zap.L().Debug("api: rejected request", fields...)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeFeatures(w http.ResponseWriter, fc *geojson.FeatureCollection) {
	data, err := json.Marshal(fc)
	if err != nil {
		zap.L().Error("api: encode features", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	w.Header().Set("Content-Type", contentTypeGeoJSON)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
