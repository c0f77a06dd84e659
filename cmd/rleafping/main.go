// Command rleafping starts a single node.Node against the given
// address, issues one PING, prints the lifecycle events it observes,
// and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/2lambda123/Ericsson-ered/node"
	"github.com/2lambda123/Ericsson-ered/resp"
	"github.com/2lambda123/Ericsson-ered/tcpconn"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s host:port\n", os.Args[0])
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	host, portStr, err := splitHostPort(flag.Arg(0))
	if err != nil {
		log.Fatalf("rleafping: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("rleafping: bad port %q: %v", portStr, err)
	}

	statusCh := make(chan node.StatusEvent, 16)
	go func() {
		for ev := range statusCh {
			fmt.Fprintf(os.Stderr, "status: %s reason=%s err=%v\n", ev.Status, ev.Reason, ev.Err)
		}
	}()

	dialer := tcpconn.NewDialer(tcpconn.Options{})
	n, err := node.Start(host, port, dialer, node.Options{StatusCh: statusCh})
	if err != nil {
		log.Fatalf("rleafping: %v", err)
	}
	defer n.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r := n.Command(ctx, resp.Command{Name: "PING"})
	if r.Err != nil {
		log.Fatalf("rleafping: PING failed: %v", r.Err)
	}
	fmt.Printf("PING -> %v\n", r.Result)

	time.Sleep(50 * time.Millisecond) // let the status goroutine drain
}

func splitHostPort(addr string) (string, string, error) {
	i := strings.LastIndexByte(addr, ':')
	if i < 0 {
		return "", "", fmt.Errorf("expected host:port, got %q", addr)
	}
	return addr[:i], addr[i+1:], nil
}
