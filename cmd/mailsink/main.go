package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"truelens-inquiry-api/pkg/email/mailsink"
	"truelens-inquiry-api/pkg/logger"
)

// mailsink captures the inquiry API's outbound mail locally.
// Point the API at it with SMTP_HOST=localhost SMTP_PORT=2525 SMTP_TLS_MODE=none.
func main() {
	addr := flag.String("addr", ":2525", "SMTP listen address")
	username := flag.String("user", os.Getenv("SMTP_USERNAME"), "accepted SMTP username (empty disables auth)")
	password := flag.String("pass", os.Getenv("SMTP_PASSWORD"), "accepted SMTP password")
	flag.Parse()

	logger.Init("debug")

	store := mailsink.NewStore()
	srv := mailsink.New(store, mailsink.Options{
		Addr:     *addr,
		Username: *username,
		Password: *password,
		Logger:   logger.Log,
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Log.Error("SMTP sink stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	_ = srv.Close()
	fmt.Printf("\nCaptured %d email(s) during this session\n", store.Count())
}
