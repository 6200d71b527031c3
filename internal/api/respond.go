package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"olive-mapper/internal/capture"
	"olive-mapper/internal/codec"
	"olive-mapper/internal/logger"
	"olive-mapper/internal/marker"
	"olive-mapper/internal/position"
	"olive-mapper/internal/prefs"
	"olive-mapper/internal/store"
)

var (
	errBadRequest = errors.New("bad request")
	errNoSink     = errors.New("no export destination configured")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// 文档注释：错误到状态码的映射
// 约束：定位失败返回面向用户的短句；其余错误返回 err.Error()。
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	var (
		nf  *store.NotFoundError
		dup *store.DuplicateIDError
		ve  *store.ValidationError
		pe  *position.Error
	)
	switch {
	case errors.As(err, &nf):
		status = http.StatusNotFound
	case errors.As(err, &ve), errors.Is(err, errBadRequest),
		errors.Is(err, codec.ErrNoValidRecords), errors.Is(err, codec.ErrInvalidGeoJSON),
		errors.Is(err, prefs.ErrInvalidTheme):
		status = http.StatusBadRequest
	case errors.Is(err, codec.ErrUnsupportedFormat):
		status = http.StatusUnsupportedMediaType
	case errors.As(err, &dup), errors.Is(err, capture.ErrNoMarkerDetected), errors.Is(err, codec.ErrNothingToExport):
		status = http.StatusConflict
	case errors.Is(err, marker.ErrCapabilityUnavailable), errors.Is(err, marker.ErrNoCamera), errors.Is(err, errNoSink):
		status = http.StatusServiceUnavailable
	case errors.As(err, &pe):
		status = http.StatusUnprocessableEntity
		msg = pe.Message()
	}
	if status >= 500 {
		logger.L().Error("api_error", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	} else {
		logger.L().Debug("api_error", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// decodeBody：空请求体返回 false 且无错误
func decodeBody(r *http.Request, v any) (bool, error) {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return true, nil
}
