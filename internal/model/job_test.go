package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AssignsIdentityAndDefaults(t *testing.T) {
	job := New("", "payload")

	assert.True(t, ValidateID(job.ID))
	assert.Equal(t, DefaultType, job.Type)
	assert.Equal(t, "payload", job.Payload)

	other := New("convert", "payload")
	assert.Equal(t, "convert", other.Type)
	assert.False(t, job.Equal(other))
	assert.True(t, job.Equal(Job{ID: job.ID}))
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	job := New("convert", `{"input":"a.wav"}`)

	data, err := Encode(job)
	require.NoError(t, err)

	decoded, err := Decode(job.ID, data)
	require.NoError(t, err)

	assert.Equal(t, job.ID, decoded.ID)
	assert.Equal(t, job.Type, decoded.Type)
	assert.Equal(t, job.Payload, decoded.Payload)
}

func TestEncode_EmptyID(t *testing.T) {
	_, err := Encode(Job{Payload: "x"})
	require.Error(t, err)
}

func TestDecode_TypeDefaultsWhenAbsent(t *testing.T) {
	decoded, err := Decode("f", []byte(`{"jobId":"id-1","jobPayload":"p"}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultType, decoded.Type)
}

func TestDecode_Malformed(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"whitespace", "  \n"},
		{"not json", "not json"},
		{"wrong shape", `[1,2,3]`},
		{"missing jobId", `{"jobPayload":"p"}`},
		{"empty jobId", `{"jobId":"","jobPayload":"p"}`},
		{"missing jobPayload", `{"jobId":"id-1"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode("entry", []byte(tc.content))
			require.Error(t, err)

			var malformed *MalformedJobError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, "entry", malformed.Name)
		})
	}
}

func TestDecode_IgnoresUnknownKeys(t *testing.T) {
	decoded, err := Decode("f", []byte(`{"jobId":"id-1","jobPayload":"p","extra":42}`))
	require.NoError(t, err)
	assert.Equal(t, "id-1", decoded.ID)
	assert.Equal(t, "p", decoded.Payload)
}

func TestOutcome_State(t *testing.T) {
	assert.Equal(t, StateFinished, OutcomeFinished.State())
	assert.Equal(t, StateFailed, OutcomeFailed.State())
	assert.True(t, StateFinished.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateInbox.Terminal())
	assert.False(t, StateProgress.Terminal())
}
