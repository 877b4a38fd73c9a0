//go:build integration

package integration

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type testEnv struct {
	BridgeURL string
	User      string
	Pass      string
}

func loadTestEnv() testEnv {
	return testEnv{
		BridgeURL: getEnvDefault("BRIDGE_URL", "http://localhost:8080"),
		User:      os.Getenv("BRIDGE_USER"),
		Pass:      os.Getenv("BRIDGE_PASS"),
	}
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// BridgeClient talks to a running qapi-bridge.
type BridgeClient struct {
	baseURL    string
	user, pass string
	client     *http.Client
}

func NewBridgeClient(env testEnv) *BridgeClient {
	return &BridgeClient{
		baseURL: env.BridgeURL,
		user:    env.User,
		pass:    env.Pass,
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

func (c *BridgeClient) do(method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.client.Do(req)
}

func (c *BridgeClient) Get(path string) (*http.Response, error) {
	return c.do("GET", path, nil)
}

func (c *BridgeClient) Post(path string, body any) (*http.Response, error) {
	return c.do("POST", path, body)
}

func (c *BridgeClient) Delete(path string) (*http.Response, error) {
	return c.do("DELETE", path, nil)
}

// WebSocketURL returns the ws:// or wss:// form of path.
func (c *BridgeClient) WebSocketURL(path string) string {
	return "ws" + strings.TrimPrefix(c.baseURL, "http") + path
}

func readJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("JSON decode error: %w (body: %s)", err, string(body))
	}
	return nil
}

func waitForBridgeReady(env testEnv, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := NewBridgeClient(env)

	for time.Now().Before(deadline) {
		resp, err := client.Get("/v1")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(1 * time.Second)
	}
	return fmt.Errorf("bridge not ready within %s", timeout)
}

func waitForPowerState(client *BridgeClient, expected string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get("/v1/status")
		if err == nil {
			var status struct {
				PowerState string `json:"power_state"`
			}
			if readJSON(resp, &status) == nil && status.PowerState == expected {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("power state did not become %q within %s", expected, timeout)
}

func ensurePowerOn(client *BridgeClient) error {
	resp, err := client.Post("/v1/power/On", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return waitForPowerState(client, "On", 10*time.Second)
}
