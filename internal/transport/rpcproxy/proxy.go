// Package rpcproxy forwards JSON-RPC requests verbatim to an upstream
// Solana RPC endpoint so browser clients never see the provider API key.
// It carries no state of its own.
package rpcproxy

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"time"
)

const maxBodyBytes = 1 << 20

type Proxy struct {
	upstream string
	client   *http.Client
	log      *log.Logger
}

func New(upstream string, logger *log.Logger) *Proxy {
	return &Proxy{
		upstream: upstream,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      logger,
	}
}

func (p *Proxy) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			http.Error(rw, "read body", http.StatusBadRequest)
			return
		}
		if len(body) > maxBodyBytes {
			http.Error(rw, "body too large", http.StatusRequestEntityTooLarge)
			return
		}

		req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, p.upstream, bytes.NewReader(body))
		if err != nil {
			http.Error(rw, "upstream request", http.StatusInternalServerError)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			p.log.Printf("rpc upstream: %v", err)
			http.Error(rw, "upstream unavailable", http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		// Status and body pass through unchanged.
		if ct := resp.Header.Get("Content-Type"); ct != "" {
			rw.Header().Set("Content-Type", ct)
		}
		rw.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(rw, resp.Body)
	}
}
