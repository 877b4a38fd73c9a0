//go:build integration

package integration

import (
	"log"
	"os"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	env := loadTestEnv()
	log.Printf("Waiting for bridge at %s...", env.BridgeURL)
	if err := waitForBridgeReady(env, 30*time.Second); err != nil {
		log.Fatalf("Bridge failed to become ready: %v", err)
	}
	log.Println("Bridge is ready, running tests...")
	os.Exit(m.Run())
}
