package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ko-stant/tilewall/internal/geometry"
)

func TestEncodeDecode_ConfigRequest(t *testing.T) {
	data, err := Encode(EventConfig, WallConfig{Extents: geometry.NewRectangle(0, 0, 3840, 1080), XScale: 1920, YScale: 1080})
	require.NoError(t, err)

	env, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, EventConfig, env.Type)

	var cfg WallConfig
	require.NoError(t, env.DecodePayload(&cfg))
	assert.Equal(t, 3840.0, cfg.Extents.W)
}

func TestEncode_NilPayloadOmitted(t *testing.T) {
	data, err := Encode(EventTime, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"time"}`, string(data))
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.True(t, IsKind(err, KindProtocol))

	_, err = Decode([]byte(`{"payload":1}`))
	assert.True(t, IsKind(err, KindProtocol))
}

func TestDecodePayload_Missing(t *testing.T) {
	env := Envelope{Type: EventConfigResponse}
	var s string
	err := env.DecodePayload(&s)
	assert.True(t, IsKind(err, KindProtocol))
}

func TestError_WrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("loading: %w", NewError(KindConfig, "wall", cause))

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsKind(err, KindConfig))
	assert.False(t, IsKind(err, KindCapacity))
	assert.Contains(t, err.Error(), "[ConfigError] wall: boom")
}

func TestPeerFrame_DataIsBase64(t *testing.T) {
	raw, err := json.Marshal(PeerFrame{Type: PeerData, Conn: "c1", Data: []byte("hi")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"data","conn":"c1","data":"aGk="}`, string(raw))
}
