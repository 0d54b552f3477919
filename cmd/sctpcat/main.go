// Command sctpcat is a diagnostic echo client/server over the SCTP
// core, grounded on cmd/iecat's flag-and-signal shaped main and the
// Rust original's echo_server.rs behaviour.
package main

import (
	"bufio"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/webrtc-sctp/sctp"
	"github.com/webrtc-sctp/sctp/llp"
	"github.com/webrtc-sctp/sctp/session"
)

var CmdLog = log.New(os.Stderr, filepath.Base(os.Args[0])+": ", 0)

var (
	udpAddrFlag = flag.String("udp-addr", "", "Local UDP `address` to bind for SCTP/UDP encapsulation;"+
		"\nempty binds RFC 6951's default tunnelling port on every interface.")
	listenFlag = flag.Bool("listen", false, "Run as an echo server instead of connecting out.")

	localPortFlag = flag.Uint("local-port", 2000, "Local SCTP port `number`.")
	peerPortFlag  = flag.Uint("peer-port", 2000, "Remote SCTP port `number` (client mode only).")
	peerFlag      = flag.String("peer", "", "Remote UDP `host:port` to connect to (client mode only).")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT)

	ll, err := llp.ListenUDP(llp.UDPConfig{Addr: *udpAddrFlag})
	if err != nil {
		CmdLog.Fatal(err)
	}
	stack := sctp.New(ll, session.DefaultConfig(), nil)
	defer stack.Close()

	go func() {
		<-signals
		CmdLog.Print("got interrupt, shutting down")
		stack.Close()
		os.Exit(130)
	}()

	if *listenFlag {
		runServer(stack, uint16(*localPortFlag))
		return
	}
	runClient(stack)
}

func runServer(stack *sctp.Stack, port uint16) {
	l, err := stack.Listen(port)
	if err != nil {
		CmdLog.Fatal(err)
	}
	CmdLog.Printf("listening on SCTP port %d", port)
	for {
		a, err := l.Accept()
		if err != nil {
			CmdLog.Print("listener closed: ", err)
			return
		}
		go echoAssoc(a)
	}
}

// echoAssoc implements the accepted side of echo_server.rs's loop:
// greet, then echo every message back with a padding prefix so
// fragmentation is visible on the wire, honouring the "abort\n" and
// "shutdown\n" control messages.
func echoAssoc(a *sctp.Assoc) {
	if err := a.Send(0, 0, true, []byte("Hello, SCTP!\n")); err != nil {
		CmdLog.Print("greeting failed: ", err)
		return
	}

	for {
		m, err := a.Recv(-1)
		if err != nil {
			CmdLog.Print("association ended: ", err)
			return
		}

		switch string(m.Data) {
		case "abort\n":
			CmdLog.Print("aborting...")
			a.Abort()
			return
		case "shutdown\n":
			CmdLog.Print("shutting down...")
			a.Shutdown()
			a.RecvWait()
			CmdLog.Print("shutdown done.")
			return
		}

		echo := append(padding(1000), append([]byte("Echo: "), m.Data...)...)
		if err := a.Send(m.Stream, m.PPID, true, echo); err != nil {
			CmdLog.Print("echo send failed: ", err)
			return
		}
	}
}

// padding fills n bytes with "<offset>," tags, the same convenience
// the Rust original uses to make a fragmented reply's chunk boundaries
// visible on inspection.
func padding(n int) []byte {
	buf := make([]byte, 0, n)
	for len(buf) < n {
		remaining := n - len(buf)
		tag := strconv.Itoa(len(buf)) + ","
		if len(tag) > remaining {
			for i := 0; i < remaining; i++ {
				buf = append(buf, 'x')
			}
			break
		}
		buf = append(buf, tag...)
	}
	return buf
}

func runClient(stack *sctp.Stack) {
	if *peerFlag == "" {
		CmdLog.Fatal("-peer is required outside -listen mode")
	}
	peer, err := net.ResolveUDPAddr("udp", *peerFlag)
	if err != nil {
		CmdLog.Fatal(err)
	}

	a, err := stack.Dial(peer, uint16(*localPortFlag), uint16(*peerPortFlag))
	if err != nil {
		CmdLog.Fatal(err)
	}

	go func() {
		for {
			m, err := a.Recv(-1)
			if err != nil {
				CmdLog.Print("association ended: ", err)
				os.Exit(0)
			}
			os.Stdout.Write(m.Data)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := append(scanner.Bytes(), '\n')
		if err := a.Send(0, 0, true, line); err != nil {
			CmdLog.Print("send failed: ", err)
			return
		}
	}
}
