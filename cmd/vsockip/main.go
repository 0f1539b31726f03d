// vsockip - хостовая утилита: подключается к репортеру в госте по vsock
// и печатает полученный IPv4-адрес.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/mdlayher/vsock"
)

func main() {
	cidFlag := flag.Uint("cid", 3, "Context ID of the guest to query")
	portFlag := flag.Uint("p", 1024, "AF_VSOCK port of the reporter")
	timeoutFlag := flag.Int("t", 5, "Read timeout in seconds (0 disables the timeout)")

	flag.Parse()

	conn, err := vsock.Dial(uint32(*cidFlag), uint32(*portFlag), nil)
	if err != nil {
		log.Fatalf("Failed to connect to %d:%d: %v", *cidFlag, *portFlag, err)
	}
	defer conn.Close()

	if *timeoutFlag > 0 {
		deadline := time.Now().Add(time.Duration(*timeoutFlag) * time.Second)
		if err := conn.SetReadDeadline(deadline); err != nil {
			log.Fatalf("Failed to set read deadline: %v", err)
		}
	}

	// Ответ без разделителей: читаем до закрытия соединения сервером
	data, err := io.ReadAll(conn)
	if err != nil {
		log.Fatalf("Failed to read address: %v", err)
	}

	ip := net.ParseIP(string(data))
	if ip == nil {
		log.Fatalf("Received invalid address: %q", data)
	}

	fmt.Println(ip.String())
}
