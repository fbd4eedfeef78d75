package encode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBase64RoundTrip(t *testing.T) {
	original := []byte("hello")
	encoded := EncodeBase64String(original)
	decoded, err := DecodeBase64String(encoded)
	require.NoError(t, err)
	require.Equal(t, original, decoded)
}

func TestDecodeDataURL(t *testing.T) {
	mimeType, data, err := DecodeDataURL("data:image/png;base64,aGVsbG8=", "")
	require.NoError(t, err)
	require.Equal(t, "image/png", mimeType)
	require.Equal(t, []byte("hello"), data)

	mimeType, data, err = DecodeDataURL(EncodeDataURL("application/pdf", []byte("%PDF")), "")
	require.NoError(t, err)
	require.Equal(t, "application/pdf", mimeType)
	require.Equal(t, []byte("%PDF"), data)
}

func TestDecodeDataURLFallback(t *testing.T) {
	mimeType, data, err := DecodeDataURL("aGVsbG8=", "image/jpeg")
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", mimeType)
	require.Equal(t, []byte("hello"), data)

	_, _, err = DecodeDataURL("aGVsbG8=", "")
	require.Error(t, err)
}

func TestDecodeDataURLRejectsMalformed(t *testing.T) {
	for _, value := range []string{
		"data:image/png;base64",
		"data:text/plain,hello",
		"data:image/png;base64,@@@",
	} {
		_, _, err := DecodeDataURL(value, "")
		require.Error(t, err, value)
	}
}
