// Command client is a line-oriented terminal client for the room chat
// server. It takes a display name as its sole required argument, connects
// over TCP, and relays stdin lines as frames while printing everything the
// server delivers.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/wire"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "server address")
	flag.Parse()

	name := strings.TrimSpace(flag.Arg(0))
	if name == "" {
		fmt.Fprintln(os.Stderr, "Usage: client [-addr host:port] <display name>")
		os.Exit(2)
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *addr, err)
	}
	fc := wire.NewConn(conn, wire.DefaultMaxFrameSize)

	// The first frame's sender field carries the display name.
	if err := fc.WriteFrame(chat.NewMessage("", name, "")); err != nil {
		log.Fatalf("Failed to send hello frame: %v", err)
	}

	fmt.Printf("Connected to server at %s\n", *addr)
	fmt.Println("Commands:")
	fmt.Println("  /join <room>  - Join a chat room")
	fmt.Println("  /leave <room> - Leave a chat room")
	fmt.Println("  /list         - List available rooms")
	fmt.Println("  /users <room> - List users in a room")
	fmt.Println("  /quit         - Quit the application")

	os.Exit(runClient(fc, name, os.Stdin, os.Stdout))
}

// runClient relays input lines to the server as frames and renders every
// delivered frame, until the user quits or the connection drops. A dropped
// connection is reported as soon as the read side sees it, even while the
// user is idle at the prompt. Returns the process exit code: zero on a
// clean quit or input EOF, non-zero when the server goes away.
func runClient(fc chat.FrameConn, name string, input io.Reader, out io.Writer) int {
	quit := make(chan struct{}) // closed once the user asked to leave
	lost := make(chan struct{}) // closed when the server drops us
	readerDone := make(chan struct{})

	go func() {
		defer close(readerDone)
		for {
			msg, err := fc.ReadFrame()
			if err != nil {
				select {
				case <-quit:
				default:
					close(lost)
				}
				return
			}
			printMessage(out, msg)
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case lines <- line:
			case <-lost:
				return
			case <-quit:
				return
			}
		}
	}()

	for {
		select {
		case <-lost:
			fmt.Fprintln(out, "Disconnected from server")
			return 1

		case line, ok := <-lines:
			if !ok {
				// Input closed; leave cleanly.
				close(quit)
				_ = fc.Close()
				<-readerDone
				return 0
			}

			if err := fc.WriteFrame(chat.NewMessage("", name, line)); err != nil {
				fmt.Fprintln(out, "Disconnected from server")
				return 1
			}

			if line == "/quit" {
				close(quit)
				<-readerDone
				_ = fc.Close()
				return 0
			}
		}
	}
}

// printMessage renders one frame. System notices without a room are local
// replies; everything else shows its room and sender.
func printMessage(out io.Writer, msg chat.Message) {
	stamp := msg.Timestamp.Format("15:04:05")
	if msg.Room == "" {
		fmt.Fprintf(out, "%s * %s\n", stamp, msg.Content)
		return
	}
	fmt.Fprintf(out, "%s [%s] %s: %s\n", stamp, msg.Room, msg.Sender, msg.Content)
}
