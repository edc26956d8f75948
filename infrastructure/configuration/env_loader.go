package configuration

import (
	"bufio"
	"os"
	"strings"

	"brokerage-gateway/infrastructure/logger"
)

// LoadEnvFromFile reads KEY=VALUE lines from the given files into the process
// environment. Variables already set win, so OS env always has precedence.
// Missing files are skipped. It returns the number of variables set.
func LoadEnvFromFile(paths ...string) int {
	loaded := 0
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			key, val, found := strings.Cut(line, "=")
			key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
			if !found || key == "" {
				continue
			}
			if _, exists := os.LookupEnv(key); exists {
				continue
			}
			if err := os.Setenv(key, strings.Trim(strings.TrimSpace(val), "\"'")); err == nil {
				loaded++
			}
		}
		_ = f.Close()
		logger.GetLogger().WithField("file", p).Info("Loaded environment file")
	}
	return loaded
}
