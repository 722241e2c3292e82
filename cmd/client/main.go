package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// arity lists the positional arguments every command expects.
var arity = map[string][]string{
	"PING":     nil,
	"KEYS":     nil,
	"PUSH":     {"key", "value"},
	"POP":      {"key"},
	"SPEEK":    {"key"},
	"SCLONE":   {"key", "dest"},
	"ENQUEUE":  {"key", "value"},
	"DEQUEUE":  {"key"},
	"QPEEK":    {"key"},
	"LADD":     {"key", "value"},
	"LGET":     {"key"},
	"LREFER":   {"key"},
	"LREMOVE":  {"key", "count"},
	"LRESET":   {"key"},
	"LHASNEXT": {"key"},
	"LSHOW":    {"key"},
	"LEN":      {"key"},
	"TYPE":     {"key"},
	"DEL":      {"key"},
}

// argParser parses and validates the command and its arguments
func argParser(input string) (map[string]interface{}, error) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil, fmt.Errorf("no command entered")
	}

	command := strings.ToUpper(parts[0])
	request := map[string]interface{}{
		"command": command,
	}

	if command == "ECHO" {
		// ECHO requires a message
		if len(parts) < 2 {
			return nil, fmt.Errorf("ECHO requires a message")
		}
		request["message"] = strings.Join(parts[1:], " ")
		return request, nil
	}

	args, ok := arity[command]
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", command)
	}
	if len(parts)-1 != len(args) {
		if len(args) == 0 {
			return nil, fmt.Errorf("%s does not require any arguments", command)
		}
		return nil, fmt.Errorf("%s requires %s", command, strings.Join(args, " and "))
	}

	for i, name := range args {
		if name == "count" {
			count, err := strconv.ParseInt(parts[i+1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("count must be an integer")
			}
			request[name] = count
			continue
		}
		request[name] = parts[i+1]
	}
	return request, nil
}

func main() {
	addr := flag.String("addr", "localhost:6379", "Server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Println("Error connecting to server:", err)
		return
	}
	defer conn.Close()

	fmt.Println("Connected to server. Type commands (e.g., PING, PUSH key value, LGET key) and press Enter.")
	reader := bufio.NewReader(os.Stdin)
	enc := msgpack.NewEncoder(conn)
	dec := msgpack.NewDecoder(conn)

	for {
		fmt.Print(">> ")
		// Read user input
		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("Error reading input:", err)
			return
		}
		input = strings.TrimSpace(input)

		// Parse and validate the input
		request, err := argParser(input)
		if err != nil {
			fmt.Println("Error:", err)
			continue
		}

		// Send the serialized request to the server
		if err := enc.Encode(request); err != nil {
			fmt.Println("Error sending to server:", err)
			return
		}

		// Read the server's response
		var serverResponse map[string]interface{}
		if err := dec.Decode(&serverResponse); err != nil {
			fmt.Println("Error reading from server:", err)
			return
		}

		printResponse(serverResponse)
	}
}

func printResponse(serverResponse map[string]interface{}) {
	switch serverResponse["status"] {
	case "OK":
		if message, ok := serverResponse["message"].(string); ok {
			fmt.Println("Server:", message)
		} else if value, ok := serverResponse["value"]; ok {
			fmt.Println("Server:", value)
		} else {
			fmt.Println("Server: OK")
		}
	case "NOT_FOUND":
		fmt.Println("Server: (nil)")
	case "ERROR":
		fmt.Println("Server Error:", serverResponse["message"])
	default:
		fmt.Println("Unexpected server response:", serverResponse)
	}
}
