package handler

import (
	"net/http"

	"github.com/mcoot/guessduel-go/internal/api/response"
)

// Health returns a handler reporting that service is up
func Health(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, response.HealthResponse{Status: "ok", Service: service})
	}
}
