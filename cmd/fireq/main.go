package main

import (
	"os"
	"strings"

	"fireq/cmd/fireq/root"
)

func main() {
	if err := root.Execute(os.Args[1:]); err != nil {
		// One line on stderr, no usage
		msg := strings.Join(strings.Fields(err.Error()), " ")
		if msg == "" {
			msg = "error"
		}
		_, _ = os.Stderr.WriteString(msg + "\n")
		os.Exit(1)
	}
}
