package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// HS256 wants at least 32 bytes of key
const minKeyBytes = 32

// Print random hex key to use as SECRET_KEY
func main() {
	size := pflag.IntP("bytes", "b", minKeyBytes, "Key length in bytes")
	pflag.Parse()

	if *size < minKeyBytes {
		fmt.Fprintf(os.Stderr, "key must be at least %d bytes\n", minKeyBytes)
		os.Exit(1)
	}

	b := make([]byte, *size)
	if _, err := rand.Read(b); err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hex.EncodeToString(b))
}
