package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/subkit/subkit/pkg/logger"
)

// HealthcheckHandler returns a handler for liveness and readiness probes.
// Without probe functions it answers 200 "ALIVE". With probe functions it
// runs each one and answers 200 "READY" only when all succeed, otherwise
// 500 "NOT_READY".
func HealthcheckHandler(log *slog.Logger, probes ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(probes) == 0 {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ALIVE"))
			return
		}

		for _, probe := range probes {
			if err := probe(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "Readiness check failed", logger.Error(err))
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("NOT_READY"))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	}
}
