package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"articlehub/internal/model"
	"articlehub/internal/store"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ArticleService is the set of operations exposed over HTTP.
type ArticleService interface {
	CreateArticle(ctx context.Context, in model.ArticleInput, now time.Time) (model.ArticleOutput, error)
	UpdateArticle(ctx context.Context, in model.ArticleInput, id string) (model.ArticleOutput, error)
	DeleteArticle(ctx context.Context, id string) (bool, error)
	GetAllArticles(ctx context.Context) ([]model.ArticleOutput, error)
	GetAllArticlesFromCollection(ctx context.Context, collectionID string) ([]model.ArticleOutput, error)
	GetTimeline(ctx context.Context, userID string) ([]model.ArticleOutput, error)
	GetArticleByID(ctx context.Context, id string) (model.ArticleOutput, error)
	GetArticleByIDForUser(ctx context.Context, articleID, userID string) (model.ArticleOutput, error)
}

type Server struct {
	articles ArticleService
	logger   *zap.Logger
	router   *mux.Router
	server   *http.Server
	now      func() time.Time
}

func NewServer(articles ArticleService, logger *zap.Logger) *Server {
	s := &Server{
		articles: articles,
		logger:   logger,
		router:   mux.NewRouter(),
		now:      time.Now,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/articles", s.handleList).Methods("GET")
	s.router.HandleFunc("/articles", s.handleCreate).Methods("POST")
	s.router.HandleFunc("/articles/{id}", s.handleGet).Methods("GET")
	s.router.HandleFunc("/articles/{id}", s.handleUpdate).Methods("PUT")
	s.router.HandleFunc("/articles/{id}", s.handleDelete).Methods("DELETE")
	s.router.HandleFunc("/collections/{id}/articles", s.handleListCollection).Methods("GET")
	s.router.HandleFunc("/users/{id}/timeline", s.handleTimeline).Methods("GET")
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start launches the HTTP server
func (s *Server) Start(port string) error {
	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.logger.Info("Web server listening", zap.String("addr", port))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	in, ok := s.decodeInput(w, r)
	if !ok {
		return
	}

	out, err := s.articles.CreateArticle(r.Context(), in, s.now())
	if err != nil {
		s.writeError(w, "create article", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	in, ok := s.decodeInput(w, r)
	if !ok {
		return
	}

	out, err := s.articles.UpdateArticle(r.Context(), in, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, "update article", err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.articles.DeleteArticle(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, "delete article", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var (
		out model.ArticleOutput
		err error
	)
	if userID := r.URL.Query().Get("user"); userID != "" {
		out, err = s.articles.GetArticleByIDForUser(r.Context(), id, userID)
	} else {
		out, err = s.articles.GetArticleByID(r.Context(), id)
	}
	if err != nil {
		s.writeError(w, "get article", err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	out, err := s.articles.GetAllArticles(r.Context())
	if err != nil {
		s.writeError(w, "list articles", err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListCollection(w http.ResponseWriter, r *http.Request) {
	out, err := s.articles.GetAllArticlesFromCollection(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, "list collection articles", err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	out, err := s.articles.GetTimeline(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, "timeline", err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) decodeInput(w http.ResponseWriter, r *http.Request) (model.ArticleInput, bool) {
	var in model.ArticleInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed JSON body"})
		return in, false
	}
	if err := in.Validate(); err != nil {
		s.writeError(w, "validate input", err)
		return in, false
	}
	return in, true
}

type errorBody struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidID), errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("op", op), zap.Error(err))
		s.writeJSON(w, status, errorBody{Error: http.StatusText(status)})
		return
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}
