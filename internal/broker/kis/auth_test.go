package kis

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func tokenServer(calls *int32, expiresIn int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":%d}`, n, expiresIn)
	}))
}

func TestTokenManager_ReusesCachedTokenAcrossInstances(t *testing.T) {
	var calls int32
	srv := tokenServer(&calls, 86400)
	defer srv.Close()

	dir := t.TempDir()
	creds := Credentials{AppKey: "key", AppSecret: "secret"}

	first := NewTokenManager(creds, srv.URL, dir)
	tok, err := first.GetToken(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if tok != "tok-1" {
		t.Errorf("Expected tok-1, got %s", tok)
	}

	info, err := os.Stat(first.CacheFile())
	if err != nil {
		t.Fatalf("Expected cache file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	second := NewTokenManager(creds, srv.URL, dir)
	tok, err = second.GetToken(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if tok != "tok-1" {
		t.Errorf("Expected cached tok-1, got %s", tok)
	}
	if calls != 1 {
		t.Errorf("Expected 1 issuance, got %d", calls)
	}
}

func TestTokenManager_SeparateAppKeys(t *testing.T) {
	var calls int32
	srv := tokenServer(&calls, 86400)
	defer srv.Close()

	dir := t.TempDir()
	a := NewTokenManager(Credentials{AppKey: "a"}, srv.URL, dir)
	b := NewTokenManager(Credentials{AppKey: "b"}, srv.URL, dir)

	ta, _ := a.GetToken(context.Background())
	tb, _ := b.GetToken(context.Background())
	if ta == tb {
		t.Errorf("Expected distinct tokens per app key, got %s twice", ta)
	}

	// 같은 파일에 두 항목 모두 남아 있어야 한다
	again := NewTokenManager(Credentials{AppKey: "a"}, srv.URL, dir)
	tok, _ := again.GetToken(context.Background())
	if tok != ta {
		t.Errorf("Expected %s from cache, got %s", ta, tok)
	}
	if calls != 2 {
		t.Errorf("Expected 2 issuances, got %d", calls)
	}
}

func TestTokenManager_RenewsNearExpiry(t *testing.T) {
	var calls int32
	srv := tokenServer(&calls, 3600)
	defer srv.Close()

	tm := NewTokenManager(Credentials{AppKey: "key"}, srv.URL, t.TempDir())
	now := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)
	tm.now = func() time.Time { return now }

	if tok, _ := tm.GetToken(context.Background()); tok != "tok-1" {
		t.Errorf("Expected tok-1, got %s", tok)
	}

	now = now.Add(50 * time.Minute)
	if tok, _ := tm.GetToken(context.Background()); tok != "tok-1" {
		t.Errorf("Expected tok-1 still valid, got %s", tok)
	}

	now = now.Add(6 * time.Minute) // 만료 4분 전
	if tok, _ := tm.GetToken(context.Background()); tok != "tok-2" {
		t.Errorf("Expected renewed tok-2, got %s", tok)
	}
}

func TestTokenManager_Invalidate(t *testing.T) {
	var calls int32
	srv := tokenServer(&calls, 86400)
	defer srv.Close()

	dir := t.TempDir()
	tm := NewTokenManager(Credentials{AppKey: "key"}, srv.URL, dir)
	tm.GetToken(context.Background())
	tm.Invalidate()

	fresh := NewTokenManager(Credentials{AppKey: "key"}, srv.URL, dir)
	tok, _ := fresh.GetToken(context.Background())
	if tok != "tok-2" {
		t.Errorf("Expected reissued tok-2 after invalidate, got %s", tok)
	}
}

func TestTokenManager_IssueFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error_code":"EGW00133"}`)
	}))
	defer srv.Close()

	tm := NewTokenManager(Credentials{AppKey: "key"}, srv.URL, t.TempDir())
	if _, err := tm.GetToken(context.Background()); err == nil {
		t.Error("Expected error on 403")
	}
}
