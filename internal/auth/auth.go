package auth

import (
	"bufio"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/region23/sessionboard/pkg/logger"
)

// DefaultFile: файл учетных данных администратора по умолчанию
const DefaultFile = "auth.secret"

// Параметры Argon2id (рекомендации OWASP)
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16
)

// Credentials: имя администратора и хеш его пароля
type Credentials struct {
	User string
	Hash string
}

// Verify проверяет пару имя/пароль в постоянное время по имени
func (c *Credentials) Verify(user, password string) (bool, error) {
	userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(c.User)) == 1
	if !userMatch {
		return false, nil
	}
	return VerifyPassword(password, c.Hash)
}

// LoadCredentials читает файл формата username:hash.
// Отсутствующий файл дает nil без ошибки: админ-маршруты остаются открытыми.
func LoadCredentials(path string, log *logger.Logger) (*Credentials, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Auth file not found, admin routes are unprotected",
				logger.String("file", path),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read auth file: %w", err)
	}

	creds, err := ParseCredentials(string(data))
	if err != nil {
		return nil, fmt.Errorf("auth file %s: %w", path, err)
	}

	log.Info("Basic Auth enabled for admin routes",
		logger.String("user", creds.User),
		logger.String("file", path),
	)
	return creds, nil
}

// ParseCredentials разбирает строку username:hash
func ParseCredentials(line string) (*Credentials, error) {
	user, hash, ok := strings.Cut(strings.TrimSpace(line), ":")
	if !ok || user == "" || hash == "" {
		return nil, fmt.Errorf("invalid auth file format (expected: username:hash)")
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		return nil, fmt.Errorf("not an argon2id hash")
	}
	return &Credentials{User: user, Hash: hash}, nil
}

// HashPassword создает Argon2id хеш пароля
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$salt$hash
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argon2Memory, argon2Time, argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword сверяет пароль с Argon2id хешем
func VerifyPassword(password, hash string) (bool, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		return false, fmt.Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return false, fmt.Errorf("not an argon2id hash")
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, fmt.Errorf("failed to parse hash parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(expected, computed) == 1, nil
}

// CreateFile записывает файл учетных данных с правами 0400.
// Существующий файл перезаписывается только при overwrite или подтверждении из in.
func CreateFile(path, user, password string, overwrite bool, in io.Reader, out io.Writer) error {
	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			fmt.Fprintf(out, "Auth file already exists: %s\n", path)
			fmt.Fprint(out, "Overwrite? (y/N): ")
			response, _ := bufio.NewReader(in).ReadString('\n')
			response = strings.TrimSpace(strings.ToLower(response))
			if response != "y" && response != "yes" {
				return fmt.Errorf("aborted")
			}
		}
		// файл только для чтения, поэтому удаляем перед записью
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove existing auth file: %w", err)
		}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := os.WriteFile(path, []byte(user+":"+hash+"\n"), 0o400); err != nil {
		return fmt.Errorf("failed to write auth file: %w", err)
	}

	fmt.Fprintf(out, "Auth file created: %s (mode: 0400 read-only)\n", path)
	fmt.Fprintf(out, "   Username: %s\n", user)
	return nil
}
