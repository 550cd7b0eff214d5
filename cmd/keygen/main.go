package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

func main() {
	// Generate RSA Key
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		fmt.Printf("Failed to generate key: %v\n", err)
		os.Exit(1)
	}

	// Marshaling to PEM
	privBytes := x509.MarshalPKCS1PrivateKey(privateKey)
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: privBytes,
	})

	fmt.Println("--- COPY BELOW TO .env.local ---")
	fmt.Printf("JWT_PRIVATE_KEY=\"%s\"\n", string(privPEM))
	fmt.Println("JWT_KEY_ID=\"default\"")
	fmt.Println("--------------------------------")
}
