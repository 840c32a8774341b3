// Command hashpw prints a line for the static user directory file:
//
//	username:bcrypt-hash[:email[:display name]]
//
// The password is read from stdin so it stays out of shell history.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Armour007/docproc-backend/internal/utils"
)

func main() {
	username := flag.String("user", "", "username (required)")
	email := flag.String("email", "", "email address")
	display := flag.String("name", "", "display name")
	skipPolicy := flag.Bool("skip-policy", false, "accept passwords that fail the strength policy")
	flag.Parse()

	line, err := entry(os.Stdin, *username, *email, *display, !*skipPolicy)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hashpw:", err)
		os.Exit(1)
	}
	fmt.Println(line)
}

func entry(in io.Reader, username, email, display string, enforcePolicy bool) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.Contains(username, ":") {
		return "", fmt.Errorf("a username without ':' is required")
	}
	pw, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	pw = strings.TrimRight(pw, "\r\n")
	if pw == "" {
		return "", fmt.Errorf("empty password on stdin")
	}
	if enforcePolicy {
		if ok, reason := utils.ValidatePasswordPolicy(pw, username, email); !ok {
			return "", fmt.Errorf("%s", reason)
		}
	}
	hash, err := utils.HashPassword(pw)
	if err != nil {
		return "", err
	}
	parts := []string{username, hash}
	if email != "" || display != "" {
		parts = append(parts, email)
	}
	if display != "" {
		parts = append(parts, display)
	}
	return strings.Join(parts, ":"), nil
}
