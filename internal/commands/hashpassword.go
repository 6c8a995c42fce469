package commands

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/region23/sessionboard/internal/auth"
)

// HashPassword обрабатывает подкоманду hash-password и возвращает код выхода
func HashPassword(args []string) int {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	overwrite := fs.Bool("overwrite", false, "Overwrite existing auth file without asking")
	insecureUnmask := fs.Bool("insecure-unmask-password", false, "Show password as plain text (INSECURE!)")
	file := fs.String("file", authFile(), "Path to auth file")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sessionboard hash-password [OPTIONS]\n\n")
		fmt.Fprintf(os.Stderr, "Creates an auth file with an Argon2id password hash for admin routes.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  AUTH_FILE    Path to auth file (default: ./%s)\n", auth.DefaultFile)
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	in := bufio.NewReader(os.Stdin)

	fmt.Print("Enter username: ")
	username, err := readLine(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading username: %v\n", err)
		return 1
	}
	if username == "" {
		fmt.Fprintf(os.Stderr, "Username cannot be empty\n")
		return 1
	}

	var password, confirm string
	if *insecureUnmask {
		fmt.Fprintf(os.Stderr, "WARNING: password will be visible on screen\n")
		fmt.Print("Enter password:   ")
		if password, err = readLine(in); err == nil {
			fmt.Print("Confirm password: ")
			confirm, err = readLine(in)
		}
	} else {
		if password, err = readPassword("Enter password:   ", in); err == nil {
			confirm, err = readPassword("Confirm password: ", in)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
		return 1
	}

	if password == "" {
		fmt.Fprintf(os.Stderr, "Password cannot be empty\n")
		return 1
	}
	if password != confirm {
		fmt.Fprintf(os.Stderr, "Passwords do not match\n")
		return 1
	}

	if err := auth.CreateFile(*file, username, password, *overwrite, in, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func authFile() string {
	if path := os.Getenv("AUTH_FILE"); path != "" {
		return path
	}
	return auth.DefaultFile
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return trimNewline(line), nil
}

// readPassword читает пароль без эха, если stdin является терминалом
func readPassword(prompt string, in *bufio.Reader) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(in)
	}

	password, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(password), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
