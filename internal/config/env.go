package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// envFiles are loaded in order when present. godotenv never overrides a
// variable that is already set, so .env wins over .env.local for keys both
// define, and the process environment wins over both.
var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads the dotenv files that exist in the working directory and
// returns the ones that were applied.
func loadEnvFiles(dir string) ([]string, error) {
	var loaded []string
	for _, name := range envFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, err
		}
		slog.Debug("Loaded environment file", slog.String("path", path))
		loaded = append(loaded, path)
	}
	return loaded, nil
}
