// qapi-test-server starts stub QMP and guest agent peers on UNIX sockets for
// manual/integration testing without requiring a running QEMU instance.
//
// Usage:
//
//	go run ./cmd/qapi-test-server [-qmp /tmp/qmp.sock] [-qga /tmp/qga.sock] [-status running]
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tjst-t/qemu-qapi/internal/qapitest"
)

func main() {
	qmpPath := flag.String("qmp", "/tmp/qapi-test-qmp.sock", "QMP socket path")
	qgaPath := flag.String("qga", "", "guest agent socket path (empty disables)")
	status := flag.String("status", "running", "initial VM run state")
	flag.Parse()

	qmpServer, err := qapitest.NewQMPServer(*qmpPath)
	if err != nil {
		log.Fatalf("QMP stub: %v", err)
	}
	defer qmpServer.Close()
	qmpServer.SetStatus(*status)
	log.Printf("QMP test server listening on %s (status=%s)", qmpServer.Addr(), *status)

	if *qgaPath != "" {
		qgaServer, err := qapitest.NewQGAServer(*qgaPath)
		if err != nil {
			log.Fatalf("QGA stub: %v", err)
		}
		defer qgaServer.Close()
		log.Printf("Guest agent test server listening on %s", qgaServer.Addr())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down")
}
