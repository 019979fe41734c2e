// Command server runs the room chat service: a TCP chat endpoint plus an
// HTTP gateway carrying the WebSocket transport and health check.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tyrowin/roomchat/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fmt.Println("Starting room chat server...")

	config := server.NewConfigFromEnv()
	listenAddr := flag.String("listen", config.ListenAddr, "TCP chat listen address")
	httpAddr := flag.String("http", config.HTTPAddr, "HTTP gateway listen address")
	flag.Parse()

	config.ListenAddr = *listenAddr
	config.HTTPAddr = *httpAddr
	server.SetConfig(config)

	chatServer := server.NewChatServer()
	if err := chatServer.Listen(config.ListenAddr); err != nil {
		log.Fatalf("Failed to bind %s: %v", config.ListenAddr, err)
	}

	go func() {
		if err := chatServer.Serve(); err != nil {
			log.Printf("Accept loop ended: %v", err)
		}
	}()

	mux := server.SetupRoutes(chatServer)
	httpServer := server.CreateServer(config.HTTPAddr, mux)

	errCh := make(chan error, 1)
	go func() {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %s, shutting down", sig)
	case err := <-errCh:
		log.Fatalf("HTTP gateway failed: %v", err)
	}

	_ = server.ShutdownServer(httpServer, shutdownTimeout)
	if err := chatServer.Shutdown(shutdownTimeout); err != nil {
		log.Printf("Shutdown incomplete: %v", err)
	}
}
