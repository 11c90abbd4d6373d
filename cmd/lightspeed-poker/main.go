package main

import (
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/pflag"
	"github.com/tcriess/lightspeed-poker/config"
	"github.com/tcriess/lightspeed-poker/globals"
	"github.com/tcriess/lightspeed-poker/persistence"
	"github.com/tcriess/lightspeed-poker/room"
	"github.com/tcriess/lightspeed-poker/types"
	"github.com/tcriess/lightspeed-poker/ws"
)

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
	addr       = pflag.String("addr", "localhost:8000", "service address (including port)")
	sslCert    = pflag.String("ssl-cert", "", "SSL cert for websocket (optional)")
	sslKey     = pflag.String("ssl-key", "", "SSL key for websocket (optional)")
)

func main() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		<-c
		globals.AppLogger.Info("interrupted!")
		os.Exit(0)
	}()

	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}

	if globalConfig.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))
	}

	persister, err := persistence.NewPersister(globalConfig)
	if err != nil {
		panic(err)
	}
	if persister != nil {
		defer persister.Close()
	}

	registry := room.NewRegistry(globalConfig, persister, clockwork.NewRealClock())

	router := mux.NewRouter()
	router.Handle("/ws", ws.NewHandler(registry, globalConfig.AllowedOrigins)).Methods(http.MethodGet)
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/rooms", roomsHandler(registry)).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{room}/rounds", roundsHandler(registry, persister)).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{room}/last", lastHandler(registry)).Methods(http.MethodGet)
	http.Handle("/", router)

	globals.AppLogger.Info("listening", "addr", *addr)
	if *sslCert != "" && *sslKey != "" {
		err = http.ListenAndServeTLS(*addr, *sslCert, *sslKey, nil)
	} else {
		err = http.ListenAndServe(*addr, nil)
	}
	globals.AppLogger.Error("stopped listening", "error", err)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "lightspeed-poker",
	})
}

func roomsHandler(registry *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, registry.Rooms())
	}
}

// roundsHandler serves the completed rounds of a room: from the live
// session's ring buffer while the room exists, from the persister
// afterwards.
func roundsHandler(registry *room.Registry, persister persistence.Persister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomId := mux.Vars(r)["room"]
		if s, ok := registry.Get(roomId); ok {
			writeJSON(w, s.Rounds())
			return
		}
		if persister == nil {
			http.NotFound(w, r)
			return
		}
		rounds, err := persister.GetRounds(roomId, 0)
		if err != nil {
			globals.AppLogger.Error("could not load rounds", "room", roomId, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, rounds)
	}
}

func lastHandler(registry *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomId := mux.Vars(r)["room"]
		var snapshot types.Room
		var ok bool
		if snapshot, ok = registry.LastSnapshot(roomId); !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, snapshot)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		globals.AppLogger.Error("could not write response", "error", err)
	}
}
