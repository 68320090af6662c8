package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	addr := flag.String("addr", ":3000", "HTTP listen address")
	publicDir := flag.String("public", "", "Path to static client directory (empty disables)")
	baseURL := flag.String("base-url", "http://localhost:3000", "Public base URL used in share links")
	flag.Parse()

	auth := NewAuth()
	reg := NewRegistry(auth)
	go reg.Run()

	mux := SetupRoutes(reg, auth, *publicDir, *baseURL)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		log.Printf("Crossfire server starting on %s", *addr)
		if *publicDir != "" {
			log.Printf("Serving client files from %s", *publicDir)
		}
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	reg.Stop()
	server.Close()
}
