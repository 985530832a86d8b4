package linkhub_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okrtools/goalpost/internal/adapter/linkhub"
	"github.com/okrtools/goalpost/internal/config"
	"github.com/okrtools/goalpost/internal/secrets"
	"github.com/okrtools/goalpost/internal/signer"
)

const testSecret = "test-signing-secret"

func testConfig(url string) config.LinkHub {
	return config.LinkHub{
		EndpointURL:     url,
		APIKeyPrefix:    "lk_test",
		SigningSecret:   testSecret,
		ProtocolVersion: "2025-06",
		Timeout:         5 * time.Second,
	}
}

func TestSendSignsTransmittedBytes(t *testing.T) {
	var gotBody []byte
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Clone()
		_ = json.NewEncoder(w).Encode(linkhub.Response{Success: true})
	}))
	defer srv.Close()

	client := linkhub.NewClient(testConfig(srv.URL))
	payload := []byte(`{"objectives":[{"externalId":"goalpost:objective:123"}]}`)

	resp, err := client.Send(context.Background(), payload)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !resp.Success {
		t.Error("expected success response")
	}

	if string(gotBody) != string(payload) {
		t.Errorf("transmitted body differs from payload:\n got %s\nwant %s", gotBody, payload)
	}
	if got := gotHeader.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := gotHeader.Get(signer.HeaderVersion); got != "2025-06" {
		t.Errorf("%s = %q", signer.HeaderVersion, got)
	}
	if got := gotHeader.Get(signer.HeaderKeyPrefix); got != "lk_test" {
		t.Errorf("%s = %q", signer.HeaderKeyPrefix, got)
	}
	// The server-side check: signature must verify against the bytes the
	// server actually received.
	if !signer.Verify(gotBody, gotHeader.Get(signer.HeaderSignature), testSecret) {
		t.Error("signature does not verify against received bytes")
	}
}

func TestSendUsesRotatedSecret(t *testing.T) {
	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(signer.HeaderSignature)
		_ = json.NewEncoder(w).Encode(linkhub.Response{Success: true})
	}))
	defer srv.Close()

	current := map[string]string{secrets.EnvSigningSecret: testSecret}
	vault, err := secrets.NewVault(func() (map[string]string, error) { return current, nil })
	if err != nil {
		t.Fatalf("vault: %v", err)
	}

	client := linkhub.NewClient(testConfig(srv.URL))
	client.SetCredentials(vault)

	current = map[string]string{secrets.EnvSigningSecret: "rotated-secret"}
	if err := vault.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if _, err := client.Send(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !signer.Verify(gotBody, gotSig, "rotated-secret") {
		t.Error("signature not produced with rotated secret")
	}
	if signer.Verify(gotBody, gotSig, testSecret) {
		t.Error("signature still uses the stale secret")
	}
}

func TestSendParsesItemResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(linkhub.Response{
			Success: false,
			Results: []linkhub.ItemResult{
				{EntityType: "objective", ExternalID: "goalpost:objective:a", LinkHubID: "lh-1", Action: "create"},
				{EntityType: "keyResult", ExternalID: "goalpost:keyResult:b", Error: "unknown objective"},
			},
		})
	}))
	defer srv.Close()

	client := linkhub.NewClient(testConfig(srv.URL))
	resp, err := client.Send(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(resp.Results))
	}
	if resp.Results[0].LinkHubID != "lh-1" {
		t.Errorf("linkhub id = %q", resp.Results[0].LinkHubID)
	}
	if resp.Results[1].Error != "unknown objective" {
		t.Errorf("item error = %q", resp.Results[1].Error)
	}
}

func TestSendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "signature mismatch", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := linkhub.NewClient(testConfig(srv.URL))
	_, err := client.Send(context.Background(), []byte(`{}`))
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := linkhub.NewClient(testConfig(srv.URL))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := client.Send(ctx, []byte(`{}`)); err == nil {
			t.Fatalf("send %d: expected error", i)
		}
	}

	hitsBefore := hits
	_, err := client.Send(ctx, []byte(`{}`))
	if !errors.Is(err, linkhub.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if hits != hitsBefore {
		t.Error("open breaker still reached the server")
	}
}
