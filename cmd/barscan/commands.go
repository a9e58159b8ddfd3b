package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/atotto/clipboard"

	"github.com/wolfeng/barscan/internal/decoder"
	"github.com/wolfeng/barscan/internal/scan"
)

// scanOnce runs one scanning session and prints the identified product
func scanOnce(ctx context.Context, service *scan.Service, dec *decoder.Decoder) error {
	scanned := make(chan scan.Record, 1)
	failed := make(chan string, 1)
	scanner := scan.NewScanner(dec, service, scan.ScannerHooks{
		OnScan: func(r scan.Record) {
			// Terminal bell as the audible confirmation
			fmt.Fprint(os.Stderr, "\a")
			scanned <- r
		},
		OnError: func(message string) {
			failed <- message
		},
	})
	scanner.Open()
	defer scanner.Close()
	fmt.Fprintln(os.Stderr, "Scanning... point the camera at a barcode")

	var record scan.Record
	select {
	case record = <-scanned:
	case message := <-failed:
		return errors.New(message)
	case <-ctx.Done():
		return ctx.Err()
	}

	fmt.Fprintf(os.Stderr, "Decoded %s (%s), identifying...\n", record.DecodedText, record.Format)
	if err := service.Wait(ctx); err != nil {
		return err
	}

	record, err := service.Get(record.ID)
	if err != nil {
		return err
	}
	return scan.RenderDetail(os.Stdout, record)
}

// showScan prints one history entry
func showScan(history []scan.Record, id string, copyText bool) error {
	record, err := scan.Find(history, id)
	if err != nil {
		return err
	}
	if err := scan.RenderDetail(os.Stdout, record); err != nil {
		return err
	}

	if copyText {
		if err := clipboard.WriteAll(scan.NewDetail(record).CopyText); err != nil {
			return fmt.Errorf("copying to clipboard: %w", err)
		}
		fmt.Fprintln(os.Stderr, "Copied to clipboard")
	}
	return nil
}

// serve runs the local UI until ctx is cancelled
func serve(ctx context.Context, service *scan.Service, dec *decoder.Decoder, metrics *scan.Metrics, addr string) error {
	scanner := scan.NewScanner(dec, service, scan.ScannerHooks{
		OnScan: func(r scan.Record) {
			slog.Info("Barcode scanned", "id", r.ID, "code", r.DecodedText, "format", r.Format)
		},
		OnError: func(message string) {
			slog.Warn("Scanner stopped", "message", message)
		},
	})
	defer scanner.Close()

	server := scan.NewServer(service, scanner, metrics)

	// Start server in goroutine
	errc := make(chan error, 1)
	go func() {
		errc <- server.Start(addr)
	}()
	slog.Info("Server started", "address", "http://"+addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	// Let running lookups reach the history store
	if err := service.Wait(shutdownCtx); err != nil {
		slog.Warn("Product lookups still running at exit", "pending", service.Pending(), "error", err)
	}
	return nil
}
