package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/vendaro/commerce-engine/internal/domain"
)

const idempotencyTTL = 24 * time.Hour

// idempotent оборачивает мутацию обработкой заголовка Idempotency-Key:
// первый запрос выполняется и его ответ сохраняется, повтор с тем же ключом
// и тем же телом получает сохранённый ответ без повторного эффекта.
func (s *Server) idempotent(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(headerIdemKey)
		if key == "" || s.idempotency == nil {
			next(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{Kind: "bad_request", Message: "unreadable request body"}})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		hash := requestHash(r.Method, r.URL.Path, body)

		_, err = s.idempotency.CreateProcessing(key, hash, time.Now().UTC().Add(idempotencyTTL))
		if err != nil {
			s.replayOrReject(w, key, hash, err)
			return
		}

		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		var markErr error
		if rec.status < http.StatusBadRequest {
			markErr = s.idempotency.MarkDone(key, rec.body.Bytes(), rec.status)
		} else {
			markErr = s.idempotency.MarkFailed(key, rec.body.Bytes(), rec.status)
		}
		if markErr != nil {
			s.logger.WithField("idempotency_key", key).WithError(markErr).Warn("mark idempotency outcome failed")
		}
	}
}

func (s *Server) replayOrReject(w http.ResponseWriter, key, hash string, createErr error) {
	if !errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists) &&
		!errors.Is(createErr, domain.ErrIdempotencyHashMismatch) {
		s.writeError(w, createErr)
		return
	}

	record, err := s.idempotency.Get(key)
	if err != nil {
		s.writeError(w, domain.ErrIdempotencyKeyAlreadyExists)
		return
	}
	if record.RequestHash != hash {
		s.writeError(w, domain.ErrIdempotencyHashMismatch)
		return
	}
	if record.Status == domain.IdempotencyStatusProcessing {
		s.writeError(w, domain.ErrIdempotencyKeyAlreadyExists)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(record.HTTPStatus)
	_, _ = w.Write(record.ResponseBody)
}

func requestHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// responseRecorder дублирует ответ в буфер для сохранения в записи
// идемпотентности.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}
