package director

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/reelsmith/internal/system"
)

var planExtensions = []string{".yaml", ".yml"}

// PlanPath creates a timestamped plan filename for a source video in dir
func PlanPath(dir, source string) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(dir, fmt.Sprintf("plan_%s_%s.yaml", stem, timestamp))
}

// FindLatestPlan finds the most recent plan file in dir
func FindLatestPlan(dir string) (string, error) {
	path, err := system.FindLatest(dir, planExtensions)
	if err != nil {
		return "", fmt.Errorf("no plan files found in %s: %w", dir, err)
	}
	return path, nil
}
