// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package main

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/go-core-stack/mcp-gateway/pkg/auth"
)

func getEndpoint() string {
	val, found := os.LookupEnv("GATEWAY_ENDPOINT")
	if !found {
		return "http://localhost:8000"
	}
	return val
}

func getApiKey() string {
	val, found := os.LookupEnv("ApiKey")
	if !found {
		return ""
	}
	return val
}

func getTenant() string {
	val, _ := os.LookupEnv("TenantID")
	return val
}

func do(client *http.Client, r *http.Request) {
	r.Header.Set("Authorization", "Bearer "+getApiKey())
	if tenant := getTenant(); tenant != "" {
		r.Header.Set("X-Tenant-ID", tenant)
	}
	resp, err := client.Do(r)
	if err != nil {
		log.Printf("got error performing http req: %s", err)
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	bodyBytes, _ := io.ReadAll(resp.Body)
	log.Printf("%s %s -> %d rate-limit-remaining=%s resp: %s", r.Method, r.URL.Path,
		resp.StatusCode, resp.Header.Get("X-RateLimit-Remaining"), string(bodyBytes))
}

// manual smoke client for a running gateway, prints the credential
// hash for use in a static identity file
func main() {
	log.Printf("credential hash: %s", auth.HashCredential(getApiKey()))

	client := &http.Client{}
	r, _ := http.NewRequest(http.MethodGet, getEndpoint()+"/health", nil)
	do(client, r)

	r, _ = http.NewRequest(http.MethodGet, getEndpoint()+"/api/modules?limit=5", nil)
	do(client, r)

	body := bytes.NewBufferString(`{"operation":"smoke_test","details":{"source":"api-keys"}}`)
	r, _ = http.NewRequest(http.MethodPost, getEndpoint()+"/audit/operations", body)
	r.Header.Set("Content-Type", "application/json")
	do(client, r)
}
