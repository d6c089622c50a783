package server

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/capture"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/clientip"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/metrics"
)

const apiLogMessage = "API LOG"

// requestLogMiddleware writes one diagnostic record per call. It is not the
// audit trail: nothing here reaches the audit store.
func (s *Server) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := clientip.FromRequest(r)

		reqBody, err := capture.ReadRequestBody(r, s.maxBodyBytes)
		if err != nil {
			s.logger.Debug("Failed to read request body", zap.String("path", r.URL.Path), zap.Error(err))
		}
		if reqBody.Truncated {
			metrics.BodiesTruncatedTotal.WithLabelValues("request").Inc()
		}

		rec := capture.NewRecorder(w, s.maxBodyBytes)

		defer func() {
			p := recover()
			if p == nil {
				return
			}
			status := http.StatusInternalServerError
			if rec.HeaderWritten() {
				status = rec.StatusCode()
			}
			var respBody capture.Body
			if resp, err := rec.Drain(); err == nil {
				respBody = resp.Body
			}
			s.logCall(zapcore.ErrorLevel, clientIP, r, reqBody, status, respBody, time.Since(start), zap.Any("panic", p))
			panic(p)
		}()

		next.ServeHTTP(rec, r)

		resp, err := rec.Drain()
		if err != nil {
			s.logger.Error("Failed to drain response", zap.String("path", r.URL.Path), zap.Error(err))
			return
		}
		if resp.Body.Truncated {
			metrics.BodiesTruncatedTotal.WithLabelValues("response").Inc()
		}

		s.logCall(zapcore.InfoLevel, clientIP, r, reqBody, resp.StatusCode, resp.Body, time.Since(start))

		if err := capture.Rehydrate(w, resp); err != nil {
			s.logger.Debug("Failed to write response", zap.String("path", r.URL.Path), zap.Error(err))
		}
	})
}

func (s *Server) logCall(level zapcore.Level, clientIP string, r *http.Request, reqBody capture.Body,
	status int, respBody capture.Body, elapsed time.Duration, extra ...zap.Field) {
	metrics.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
	metrics.HTTPRequestDuration.Observe(elapsed.Seconds())

	fields := append([]zap.Field{
		zap.String("client_ip", clientIP),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_body", reqBody.String()),
		zap.Int("status_code", status),
		zap.String("response_body", respBody.String()),
		zap.Float64("time_taken_s", math.Round(elapsed.Seconds()*1e4)/1e4),
	}, extra...)

	if ce := s.logger.Check(level, apiLogMessage); ce != nil {
		ce.Write(fields...)
	}
}
