// Utilities for extracting a bearer token from a copied browser cURL command.
//
// The upstream web app exposes no token UI, so the fastest manual auth path is
// copying a request as cURL from browser devtools and feeding it to dojotap.
package shared

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var headerRegex = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)

// ExtractBearerFromCurlFile reads a file containing a cURL command and extracts
// the bearer token from its Authorization header.
func ExtractBearerFromCurlFile(filepath string) (string, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return "", fmt.Errorf("failed to read curl file: %w", err)
	}

	return ExtractBearerFromCurl(content)
}

// ExtractBearerFromCurl parses a cURL command string and extracts the bearer token.
//
// Accepts both "Authorization: Bearer <token>" and a raw "Authorization: <token>"
// header. Line continuations are collapsed before matching.
func ExtractBearerFromCurl(data []byte) (string, error) {
	curlCmd := string(data)
	curlCmd = strings.ReplaceAll(curlCmd, "\\\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "\\", "")

	for _, match := range headerRegex.FindAllStringSubmatch(curlCmd, -1) {
		headerLine := match[1]
		if headerLine == "" {
			headerLine = match[2]
		}

		parts := strings.SplitN(headerLine, ":", 2)
		if len(parts) != 2 {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(parts[0]), "authorization") {
			continue
		}

		token := strings.TrimSpace(parts[1])
		token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
		if token == "" {
			return "", fmt.Errorf("empty Authorization header in curl command")
		}
		return token, nil
	}

	return "", fmt.Errorf("no Authorization header found in curl command")
}

// NormalizeBearerToken accepts either a raw token or a "Bearer <token>" string
// and returns the raw token.
func NormalizeBearerToken(raw string) string {
	token := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[len("bearer "):])
	}
	return token
}
