package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/scenariokit/harness/internal/logger"
)

type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type Post struct {
	UserID int    `json:"userId"`
	ID     int    `json:"id"`
	Title  string `json:"title"`
}

// Users and Posts are the fixed REST fixtures.
var (
	Users = []User{
		{ID: 1, Name: "Leanne Graham", Username: "Bret"},
		{ID: 2, Name: "Ervin Howell", Username: "Antonette"},
	}
	Posts = []Post{
		{UserID: 1, ID: 101, Title: "First Post by Leanne"},
		{UserID: 1, ID: 102, Title: "Second Post by Leanne"},
		{UserID: 2, ID: 201, Title: "Post by Ervin"},
	}
)

// NewRESTHandler returns the router for the users/posts fixture API.
func NewRESTHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLog("rest"))

	r.Get("/users", listUsers)
	r.Get("/users/{id}", getUser)
	r.Get("/posts", listPosts)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusNotFound, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusMethodNotAllowed, fmt.Sprintf("%s not allowed on %s", r.Method, r.URL.Path))
	})
	return r
}

func listUsers(w http.ResponseWriter, r *http.Request) {
	limit, ok := intQuery(w, r, "limit")
	if !ok {
		return
	}
	result := Users
	if limit != nil && *limit > 0 && *limit < len(result) {
		result = result[:*limit]
	}
	JSON(w, http.StatusOK, result)
}

func getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "user id must be an integer")
		return
	}
	for _, u := range Users {
		if u.ID == id {
			JSON(w, http.StatusOK, u)
			return
		}
	}
	Error(w, http.StatusNotFound, fmt.Sprintf("user %d not found", id))
}

func listPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := intQuery(w, r, "userId")
	if !ok {
		return
	}
	result := make([]Post, 0, len(Posts))
	for _, p := range Posts {
		if userID == nil || p.UserID == *userID {
			result = append(result, p)
		}
	}
	JSON(w, http.StatusOK, result)
}

// intQuery reads an optional integer query parameter. A malformed value is
// answered with 400 and ok=false.
func intQuery(w http.ResponseWriter, r *http.Request, name string) (*int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		Error(w, http.StatusBadRequest, fmt.Sprintf("query parameter %q must be an integer", name))
		return nil, false
	}
	return &n, true
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    http.StatusText(status),
			"code":    status,
		},
	})
}

func requestLog(protocol string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.AddScopedLog("DEBUG", "mock", fmt.Sprintf("%s mock %s %s -> %d (%s)",
				protocol, r.Method, r.URL.RequestURI(), ww.Status(), time.Since(start).Round(time.Microsecond)))
		})
	}
}
