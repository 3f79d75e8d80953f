package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/emissions-service/internal/model"
	"github.com/sells-group/emissions-service/internal/summary"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the emission factor HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		env.refresh(ctx)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      buildRouter(env, cfg.Server.AdminToken, cfg.Server.CORSOrigins),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	},
}

type factorRequest struct {
	Category   string  `json:"category"`
	CustomItem string  `json:"customItem"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
	Notes      *string `json:"notes,omitempty"`
}

type factorResponse struct {
	Item                    string  `json:"item"`
	Category                string  `json:"category"`
	EstimatedEmissionFactor float64 `json:"estimatedEmissionFactor"`
	Unit                    string  `json:"unit"`
	Confidence              float64 `json:"confidence"`
	SourceNote              string  `json:"sourceNote"`
}

// buildRouter wires the HTTP API around env. An empty adminToken leaves
// /admin/refresh open.
func buildRouter(env *appEnv, adminToken string, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(env.Metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		snap := env.Store.Current()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"generation": snap.Generation(),
			"entries":    snap.Len(),
		})
	})

	r.Handle("/metrics", env.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/get-factor", func(w http.ResponseWriter, r *http.Request) {
			var req factorRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if strings.TrimSpace(req.CustomItem) == "" {
				writeError(w, http.StatusBadRequest, "customItem is required")
				return
			}
			cat := requestCategory(req.Category)
			res := env.Resolver.ResolveFactor(r.Context(), req.CustomItem, cat, req.Unit)
			writeJSON(w, http.StatusOK, factorResponse{
				Item:                    req.CustomItem,
				Category:                req.Category,
				EstimatedEmissionFactor: res.Factor,
				Unit:                    string(res.Unit),
				Confidence:              res.Confidence,
				SourceNote:              res.SourceNote,
			})
		})

		r.Post("/analyze-week", func(w http.ResponseWriter, r *http.Request) {
			var req summary.Request
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			resp, err := summary.Analyze(req, env.Tables)
			if err != nil {
				if errors.Is(err, summary.ErrEmptyBreakdown) {
					writeError(w, http.StatusBadRequest, "categoryBreakdown must not be empty")
					return
				}
				zap.L().Error("analyze week failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			writeJSON(w, http.StatusOK, resp)
		})

		r.Get("/lookup", func(w http.ResponseWriter, r *http.Request) {
			item := r.URL.Query().Get("item")
			cat := requestCategory(r.URL.Query().Get("category"))
			writeJSON(w, http.StatusOK, env.Resolver.Lookup(item, cat))
		})
	})

	r.With(requireToken(adminToken)).Post("/admin/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, env.refresh(r.Context()))
	})

	return r
}

// requestCategory canonicalizes an optional category. Blank means no filter;
// unrecognized names pass through upper-cased, so lookups fall back to the
// unknown record instead of failing.
func requestCategory(raw string) model.Category {
	if cat, ok := model.ParseCategory(raw); ok {
		return cat
	}
	return model.Category(strings.ToUpper(strings.TrimSpace(raw)))
}

func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
