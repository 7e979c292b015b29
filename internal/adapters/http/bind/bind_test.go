package bind_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/exposurerisk/internal/adapters/http/bind"
)

type scan struct {
	Seconds int32 `json:"seconds" validate:"min=0"`
}

type payload struct {
	Date  string `json:"date" validate:"required,dateonly"`
	Scans []scan `json:"scans" validate:"max=3,dive"`
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestParseJSON_Success(t *testing.T) {
	got, err := bind.ParseJSON[payload](post(`{"date":"2026-10-01","scans":[{"seconds":300}]}`))
	require.NoError(t, err)
	assert.Equal(t, "2026-10-01", got.Date)
	require.Len(t, got.Scans, 1)
	assert.EqualValues(t, 300, got.Scans[0].Seconds)
}

func TestParseJSON_EmptyBody(t *testing.T) {
	_, err := bind.ParseJSON[payload](httptest.NewRequest(http.MethodPost, "/", http.NoBody))
	assert.ErrorIs(t, err, bind.ErrEmptyBody)
}

func TestParseJSON_InvalidJSON(t *testing.T) {
	_, err := bind.ParseJSON[payload](post(`{"date":`))
	assert.ErrorIs(t, err, bind.ErrInvalidJSON)
}

func TestParseJSON_UnknownField(t *testing.T) {
	_, err := bind.ParseJSON[payload](post(`{"date":"2026-10-01","extra":1}`))
	assert.ErrorIs(t, err, bind.ErrInvalidJSON)
}

func TestParseJSON_UnknownFieldAllowed(t *testing.T) {
	_, err := bind.ParseJSON[payload](post(`{"date":"2026-10-01","extra":1}`), bind.JSONOptions{})
	assert.NoError(t, err)
}

func TestParseJSON_TrailingData(t *testing.T) {
	_, err := bind.ParseJSON[payload](post(`{"date":"2026-10-01"} {}`))
	assert.ErrorIs(t, err, bind.ErrInvalidJSON)
}

func TestParseJSON_BadDate(t *testing.T) {
	_, err := bind.ParseJSON[payload](post(`{"date":"01/10/2026"}`))
	require.ErrorIs(t, err, bind.ErrValidation)

	var fe *bind.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "date", fe.Field)
	assert.Equal(t, "date must be a YYYY-MM-DD date", fe.Message)
}

func TestParseJSON_NegativeSeconds(t *testing.T) {
	_, err := bind.ParseJSON[payload](post(`{"date":"2026-10-01","scans":[{"seconds":-1}]}`))

	var fe *bind.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "scans[0].seconds", fe.Field)
	assert.Equal(t, "seconds must be at least 0", fe.Message)
}

func TestParseJSON_TooManyItems(t *testing.T) {
	_, err := bind.ParseJSON[payload](post(`{"date":"2026-10-01","scans":[{},{},{},{}]}`))

	var fe *bind.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "scans", fe.Field)
}

func TestParseJSON_BodyLimit(t *testing.T) {
	body := `{"date":"2026-10-01","scans":[` + strings.Repeat(`{"seconds":1},`, 10) + `{}]}`
	_, err := bind.ParseJSON[payload](post(body), bind.JSONOptions{MaxBytes: 32, DisallowUnknown: true})
	assert.ErrorIs(t, err, bind.ErrBodyTooLarge)
	assert.NotErrorIs(t, err, bind.ErrInvalidJSON)
}

func TestParseJSON_DefaultBodyLimit(t *testing.T) {
	pad := strings.Repeat(" ", 1<<20)
	_, err := bind.ParseJSON[payload](post(`{"date":"2026-10-01",` + pad + `"scans":[]}`))
	assert.ErrorIs(t, err, bind.ErrBodyTooLarge)
}

// stutterReader returns (0, nil) once before yielding its data, which
// io.Reader permits.
type stutterReader struct {
	data    *strings.Reader
	stalled bool
}

func (r *stutterReader) Read(p []byte) (int, error) {
	if !r.stalled {
		r.stalled = true
		return 0, nil
	}
	return r.data.Read(p)
}

func TestParseJSON_ZeroLengthFirstRead(t *testing.T) {
	body := &stutterReader{data: strings.NewReader(`{"date":"2026-10-01","scans":[]}`)}
	req := httptest.NewRequest(http.MethodPost, "/", body)
	got, err := bind.ParseJSON[payload](req)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-01", got.Date)
}

func TestValidationFieldAndMessage_Plain(t *testing.T) {
	field, msg := bind.ValidationFieldAndMessage(errors.New("boom"))
	assert.Empty(t, field)
	assert.Equal(t, "boom", msg)

	field, msg = bind.ValidationFieldAndMessage(nil)
	assert.Empty(t, field)
	assert.Empty(t, msg)
}
