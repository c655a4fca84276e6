package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
)

type sampleBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@b.co","password":"secret1"}`))
	var body sampleBody
	require.NoError(t, DecodeJSONBody(req, &body))
	require.Equal(t, "a@b.co", body.Email)
}

func TestDecodeJSONBodyValidation(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"nope","password":"123"}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be a valid email", details["email"])
	require.Equal(t, "must be at least 6", details["password"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@b.co","password":"secret1","role":"admin"}`))
	var body sampleBody
	require.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest("GET", "/?page=3&bad=x&big=500", nil)

	v, err := ParseQueryInt(req, "page", 1, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 3, v)

	v, err = ParseQueryInt(req, "missing", 1, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	_, err = ParseQueryInt(req, "bad", 1, 1, 100)
	require.Error(t, err)
	_, err = ParseQueryInt(req, "big", 1, 1, 100)
	require.Error(t, err)
}

func TestParsePathID(t *testing.T) {
	id, err := ParsePathID(" 42 ", "lineId")
	require.NoError(t, err)
	require.Equal(t, int64(42), id)

	_, err = ParsePathID("0", "lineId")
	require.Error(t, err)
	_, err = ParsePathID("abc", "lineId")
	require.Error(t, err)
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	require.Equal(t, "abcdef", SanitizeString("abcdef", 0))
}

func TestSanitizeStringKeepsRunesWhole(t *testing.T) {
	// "é" is two bytes; a cut at 2 would leave half of it.
	require.Equal(t, "a", SanitizeString("aé", 2))
	require.Equal(t, "aé", SanitizeString(" aé ", 3))
}

func TestDecodeJSONBodyRejectsTrailingData(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@b.co","password":"secret1"}{"x":1}`))
	var body sampleBody
	require.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	big := `{"email":"` + strings.Repeat("a", maxBodyBytes) + `@b.co","password":"secret1"}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(big))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Contains(t, err.Error(), "too large")
}
