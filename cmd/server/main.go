package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vinhnt/goshare/internal/auth"
	"github.com/vinhnt/goshare/internal/server"
)

func main() {
	log.Println("Starting GoShare signaling server...")

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	server.SetConfig(cfg)

	store, err := auth.Open(cfg.AuthDBPath)
	if err != nil {
		log.Fatalf("Failed to open credential store: %v", err)
	}
	defer store.Close()

	server.GetHub().SetAuthStore(store)
	server.StartHub()

	mux := server.SetupRoutes()
	httpServer := server.CreateServer(cfg.Port, mux)

	go func() {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	if err := server.ShutdownServer(httpServer, 10*time.Second); err != nil {
		log.Printf("HTTP shutdown returned error: %v", err)
	}
	if err := server.GetHub().Shutdown(5 * time.Second); err != nil {
		log.Printf("Hub shutdown returned error: %v", err)
	}
}
