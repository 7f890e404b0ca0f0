package workspace

import (
	"encoding/json"
	"fmt"
	"os"
)

// ManifestSuffix names the manifest written beside a checkout directory.
// It lives outside the checkout so the build never sees it.
const ManifestSuffix = ".checkout.json"

// ManifestPath returns the manifest path for the checkout at dest.
func ManifestPath(dest string) string {
	return dest + ManifestSuffix
}

// WriteManifest records how the checkout at dest was prepared.
func WriteManifest(dest string, result PrepareResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkout manifest: %w", err)
	}
	if err := os.WriteFile(ManifestPath(dest), data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkout manifest: %w", err)
	}
	return nil
}

// ReadManifest reads the manifest of the checkout at dest.
func ReadManifest(dest string) (*PrepareResult, error) {
	data, err := os.ReadFile(ManifestPath(dest))
	if err != nil {
		return nil, fmt.Errorf("failed to read checkout manifest: %w", err)
	}

	var result PrepareResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout manifest: %w", err)
	}
	return &result, nil
}
