package encode

import (
	"encoding/base64"
	"fmt"
	"strings"
)

func DecodeBase64String(value string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(value)
}

func EncodeBase64String(value []byte) string {
	return base64.StdEncoding.EncodeToString(value)
}

// DecodeDataURL splits a base64 data URL ("data:image/png;base64,....") into
// its media type and decoded payload. A bare base64 string is accepted when
// fallbackMIME is provided.
func DecodeDataURL(value, fallbackMIME string) (string, []byte, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "data:") {
		if strings.TrimSpace(fallbackMIME) == "" {
			return "", nil, fmt.Errorf("not a data url")
		}
		data, err := DecodeBase64String(value)
		if err != nil {
			return "", nil, fmt.Errorf("decode base64 payload: %w", err)
		}
		return fallbackMIME, data, nil
	}

	header, payload, found := strings.Cut(strings.TrimPrefix(value, "data:"), ",")
	if !found {
		return "", nil, fmt.Errorf("data url missing payload")
	}

	mimeType, params, _ := strings.Cut(header, ";")
	if !strings.Contains(params, "base64") {
		return "", nil, fmt.Errorf("data url is not base64 encoded")
	}
	if strings.TrimSpace(mimeType) == "" {
		mimeType = fallbackMIME
	}

	data, err := DecodeBase64String(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode base64 payload: %w", err)
	}
	return mimeType, data, nil
}

// EncodeDataURL renders data as a base64 data URL.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + EncodeBase64String(data)
}
