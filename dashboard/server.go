// Package dashboard serves the county health mart over HTTP: a small JSON API
// plus a single-page view of the published tables.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/healthpulse/healthpulse/helper"
	"github.com/healthpulse/healthpulse/logger"
	"github.com/healthpulse/healthpulse/warehouse"
)

type WebServerConfig struct {
	LogLevel         string `errorTxt:"log level" mandatory:"yes"`
	Addr             string `errorTxt:"address" mandatory:"no"`
	Port             int    `errorTxt:"port" mandatory:"yes"`
	Db               warehouse.Connector
	StackDumpOnPanic bool
}

// RunWebServer starts the dashboard and blocks until SIGINT.
func RunWebServer(web *WebServerConfig) error {
	if web == nil {
		return errors.New("nil pointer to web server config supplied")
	}
	log := logger.NewLogger("healthpulse", web.LogLevel, web.StackDumpOnPanic)
	if err := helper.ValidateStructIsPopulated(web); err != nil {
		return err
	}
	if web.Db == nil {
		return errors.New("nil warehouse connection supplied to web server")
	}
	srv := runServer(log, web)
	return waitForServer(log, srv)
}

// NewRouter wires the API and page routes; split out so tests can drive the
// handlers without a listening socket.
func NewRouter(log logger.Logger, db warehouse.Connector) *mux.Router {
	r := mux.NewRouter()
	r.Path("/health").HandlerFunc(GetHandlerHealth(log))
	r.Path("/api/counties").HandlerFunc(GetHandlerCounties(log, db))
	r.Path("/api/states").HandlerFunc(GetHandlerStates(log, db))
	r.Path("/api/status").HandlerFunc(GetHandlerStatus(log, db))
	r.Path("/").HandlerFunc(GetHandlerIndex(log))
	return r
}

func runServer(log logger.Logger, web *WebServerConfig) *http.Server {
	srv := &http.Server{ // Good practice to set timeouts to avoid Slowloris attacks.
		Addr:         fmt.Sprintf("%v:%v", web.Addr, web.Port),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      NewRouter(log, web.Db),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			if err == http.ErrServerClosed {
				log.Info(err)
			} else {
				log.Panic(err)
			}
		}
	}()
	log.Info(fmt.Sprintf("Listening on http://%v:%v", web.Addr, web.Port))
	return srv
}

func waitForServer(log logger.Logger, srv *http.Server) error {
	// Accept graceful shutdowns via SIGINT (Ctrl+C).
	// SIGKILL, SIGQUIT or SIGTERM will not be caught.
	chanOS := make(chan os.Signal, 1)
	signal.Notify(chanOS, os.Interrupt)
	<-chanOS
	fmt.Println() // print new line char for clean looking CLI.
	log.Info("Shutting down web server...")
	wait := time.Second * 15
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	return srv.Shutdown(ctx) // waits for in-flight requests up to the deadline.
}
