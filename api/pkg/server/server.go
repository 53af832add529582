package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/bigkevmcd/capomastro/api/pkg/aggregator"
	"github.com/bigkevmcd/capomastro/api/pkg/config"
	"github.com/bigkevmcd/capomastro/api/pkg/jenkins"
	"github.com/bigkevmcd/capomastro/api/pkg/store"
	"github.com/bigkevmcd/capomastro/api/pkg/tasks"
)

const APIPrefix = "/api/v1"

type CapomastroAPIServer struct {
	Cfg   *config.ServerConfig
	Store store.Store

	importer   *jenkins.Importer
	builder    *aggregator.Builder
	dispatcher tasks.Dispatcher

	router *mux.Router
}

func NewServer(cfg *config.ServerConfig, store store.Store, importer *jenkins.Importer, builder *aggregator.Builder, dispatcher tasks.Dispatcher) *CapomastroAPIServer {
	apiServer := &CapomastroAPIServer{
		Cfg:        cfg,
		Store:      store,
		importer:   importer,
		builder:    builder,
		dispatcher: dispatcher,
	}
	apiServer.router = apiServer.registerRoutes()
	return apiServer
}

func (apiServer *CapomastroAPIServer) registerRoutes() *mux.Router {
	router := mux.NewRouter()
	subRouter := router.PathPrefix(APIPrefix).Subrouter()

	subRouter.HandleFunc("/status", apiServer.status).Methods(http.MethodGet)

	subRouter.HandleFunc("/jenkins/notifications", apiServer.jenkinsNotificationHandler).Methods(http.MethodPost)

	subRouter.HandleFunc("/projects/{id}/builds", apiServer.requestProjectBuild).Methods(http.MethodPost)
	subRouter.HandleFunc("/projects/{id}/builds", apiServer.listProjectBuilds).Methods(http.MethodGet)
	subRouter.HandleFunc("/projects/{id}/builds/{buildID}", apiServer.getProjectBuild).Methods(http.MethodGet)

	return router
}

func (apiServer *CapomastroAPIServer) status(res http.ResponseWriter, _ *http.Request) {
	res.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(res, `{"status": "ok"}`)
}

// Router exposes the handler for tests.
func (apiServer *CapomastroAPIServer) Router() http.Handler {
	return apiServer.router
}

func (apiServer *CapomastroAPIServer) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", apiServer.Cfg.WebServer.Host, apiServer.Cfg.WebServer.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           apiServer.router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Err(err).Msg("error shutting down api server")
		}
	}()

	log.Info().Str("addr", addr).Msg("api server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
