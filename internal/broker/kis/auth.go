package kis

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"stockfinder/internal/store"
)

// BaseURL 실전투자 도메인
const BaseURL = "https://openapi.koreainvestment.com:9443"

const (
	tokenPath = "/oauth2/tokenP"

	// 만료 직전 토큰은 쓰지 않는다
	tokenRenewBefore = 5 * time.Minute

	tokenCacheFile = ".kis_tokens.json"
)

// cachedToken 앱키별 토큰 캐시 항목
type cachedToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	IssuedAt    time.Time `json:"issued_at"`
}

// TokenManager issues and caches the OAuth access token.
// KIS limits issuance (one per minute, tokens live 24h), so tokens are shared
// across runs through a 0600 JSON file keyed by an app-key fingerprint.
type TokenManager struct {
	creds   Credentials
	client  *http.Client
	baseURL string
	cache   *store.JSONFile[cachedToken]
	key     string
	now     func() time.Time

	mu      sync.Mutex
	current cachedToken
}

// NewTokenManager 토큰 매니저 생성. cacheDir 가 비어 있으면 홈 디렉터리 사용
func NewTokenManager(creds Credentials, baseURL, cacheDir string) *TokenManager {
	if cacheDir == "" {
		cacheDir, _ = os.UserHomeDir()
	}
	sum := sha256.Sum256([]byte(creds.AppKey))

	tm := &TokenManager{
		creds:   creds,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		cache:   store.NewJSONFile[cachedToken](filepath.Join(cacheDir, tokenCacheFile)).WithPerm(0600),
		key:     hex.EncodeToString(sum[:8]),
		now:     time.Now,
	}
	tm.restore()
	return tm
}

// CacheFile 캐시 파일 경로
func (tm *TokenManager) CacheFile() string {
	return tm.cache.Path()
}

func (tm *TokenManager) usable(t cachedToken) bool {
	return t.AccessToken != "" && tm.now().Add(tokenRenewBefore).Before(t.ExpiresAt)
}

// restore 캐시 파일에서 유효한 토큰 복원
func (tm *TokenManager) restore() {
	entries, err := tm.cache.Load()
	if err != nil {
		log.Printf("[KIS] Ignoring token cache: %v", err)
		return
	}
	if t, ok := entries[tm.key]; ok && tm.usable(t) {
		tm.current = t
		log.Printf("[KIS] Using cached token (expires %s)", t.ExpiresAt.Format("2006-01-02 15:04"))
	}
}

// persist 다른 앱키 항목은 유지하고 만료된 항목은 정리
func (tm *TokenManager) persist() error {
	entries, err := tm.cache.Load()
	if err != nil {
		entries = make(map[string]cachedToken)
	}
	for k, t := range entries {
		if !tm.usable(t) {
			delete(entries, k)
		}
	}
	if tm.current.AccessToken == "" {
		delete(entries, tm.key)
	} else {
		entries[tm.key] = tm.current
	}
	return tm.cache.Save(entries)
}

// GetToken returns a usable token, issuing a new one when needed
func (tm *TokenManager) GetToken(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.usable(tm.current) {
		return tm.current.AccessToken, nil
	}

	t, err := tm.issue(ctx)
	if err != nil {
		return "", err
	}
	tm.current = t
	if err := tm.persist(); err != nil {
		log.Printf("[KIS] Warning: failed to cache token: %v", err)
	}
	return t.AccessToken, nil
}

// issue POST /oauth2/tokenP
func (tm *TokenManager) issue(ctx context.Context) (cachedToken, error) {
	payload, err := json.Marshal(tokenRequest{
		GrantType: "client_credentials",
		AppKey:    tm.creds.AppKey,
		AppSecret: tm.creds.AppSecret,
	})
	if err != nil {
		return cachedToken{}, fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.baseURL+tokenPath, bytes.NewReader(payload))
	if err != nil {
		return cachedToken{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := tm.client.Do(req)
	if err != nil {
		return cachedToken{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cachedToken{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return cachedToken{}, fmt.Errorf("token request failed: status %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return cachedToken{}, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return cachedToken{}, fmt.Errorf("token response without access_token: %s", string(body))
	}

	issued := tm.now()
	log.Printf("[KIS] Issued new access token (valid %ds)", tr.ExpiresIn)
	return cachedToken{
		AccessToken: tr.AccessToken,
		IssuedAt:    issued,
		ExpiresAt:   issued.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// Invalidate drops the current token so the next call issues a new one
func (tm *TokenManager) Invalidate() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.current = cachedToken{}
	if err := tm.persist(); err != nil {
		log.Printf("[KIS] Warning: failed to update token cache: %v", err)
	}
}
