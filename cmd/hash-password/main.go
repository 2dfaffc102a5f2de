package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/stemsi/oralexam/internal/config"
	"github.com/stemsi/oralexam/internal/service"
	"golang.org/x/term"
)

const minPasswordLength = 8

func main() {
	cfg := config.Load()
	authService := service.NewAuthService(cfg, nil)

	fmt.Println("=== Generate ADMIN_PASSWORD_HASH ===")

	password, err := prompt("Enter Password: ")
	if err != nil {
		fail("reading password: %v", err)
	}
	if len(password) < minPasswordLength {
		fail("password must be at least %d characters", minPasswordLength)
	}

	confirm, err := prompt("Confirm Password: ")
	if err != nil {
		fail("reading password: %v", err)
	}
	if confirm != password {
		fail("passwords do not match")
	}

	hash, err := authService.HashPassword(password)
	if err != nil {
		fail("hashing password: %v", err)
	}

	fmt.Printf("\nADMIN_PASSWORD_HASH='%s'\n", hash)
}

// prompt reads a line without echoing it.
func prompt(label string) (string, error) {
	fmt.Print(label)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	return string(b), err
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
