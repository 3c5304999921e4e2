package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schoolapi/backend/internal/gateway/util"
	"schoolapi/backend/internal/shared"
)

// actorID returns the id of the authenticated caller for audit entries
func actorID(r *http.Request) string {
	if p := util.PrincipalFrom(r); p != nil {
		return p.ID
	}
	return ""
}

func pathID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// queryDay parses a YYYY-MM-DD query parameter, falling back to def when absent
func queryDay(r *http.Request, key string, def time.Time) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return def, nil
	}
	day, err := shared.ParseDay(value)
	if err != nil {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "%s: %v", key, err)
	}
	return day, nil
}

// requireDay is queryDay for parameters without a default
func requireDay(r *http.Request, key string) (time.Time, error) {
	if r.URL.Query().Get(key) == "" {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	return queryDay(r, key, time.Time{})
}

// respond writes data with status code on success and maps err otherwise
func respond(w http.ResponseWriter, code int, data interface{}, err error) {
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteJSON(w, code, data)
}

// deleted writes the standard response for a successful delete
func deleted(w http.ResponseWriter, err error, resource string) {
	if err != nil {
		util.HandleError(w, err)
		return
	}
	util.WriteMessage(w, http.StatusOK, resource+" deleted")
}
