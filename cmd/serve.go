package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clearbill/billscan/internal/history"
	"github.com/clearbill/billscan/internal/refdata"
	"github.com/clearbill/billscan/pkg/pheno"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ref, err := refdata.Load(cfg.Refdata.MappingsPath, cfg.Refdata.FallbackPath)
		if err != nil {
			return err
		}

		pipeline := newPipeline(ref)
		store := history.NewStore()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/api/analyze", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				BillText string `json:"bill_text"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if body.BillText == "" {
				writeError(w, http.StatusBadRequest, "bill_text is required")
				return
			}

			data, err := pipeline.Analyze(req.Context(), body.BillText)
			if err != nil {
				zap.L().Error("analyze request failed", zap.Error(err))
				status := http.StatusBadGateway
				if pheno.IsAuthError(err) {
					status = http.StatusServiceUnavailable
				}
				writeError(w, status, "analysis failed")
				return
			}

			record := store.Add(body.BillText, *data)
			writeJSON(w, http.StatusOK, record)
		})

		r.Get("/api/analyses", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, store.List())
		})

		r.Get("/api/analyses/{id}", func(w http.ResponseWriter, req *http.Request) {
			record, err := store.Get(chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, http.StatusNotFound, "analysis not found")
				return
			}
			writeJSON(w, http.StatusOK, record)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
