package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrivateRoomId(t *testing.T) {
	assert.Equal(t, "private_1_2", PrivateRoomId(1, 2))
	assert.Equal(t, "private_1_2", PrivateRoomId(2, 1))
	assert.Equal(t, PrivateRoomId(42, 7), PrivateRoomId(7, 42))

	// guest ids are negative and sort below account ids
	assert.Equal(t, "private_-5_3", PrivateRoomId(3, -5))
}

func TestLegacyPrivateRoomId(t *testing.T) {
	assert.Equal(t, "private_2_1", LegacyPrivateRoomId(1, 2))
	assert.Equal(t, "private_2_1", LegacyPrivateRoomId(2, 1))
	assert.Equal(t, "private_3_-5", LegacyPrivateRoomId(3, -5))
}

func TestIsPrivateRoomId(t *testing.T) {
	assert.True(t, IsPrivateRoomId("private_1_2"))
	assert.False(t, IsPrivateRoomId("public"))
	assert.False(t, IsPrivateRoomId("d2c1e5a0-room"))
}

func TestParsePrivateRoomId(t *testing.T) {
	a, b, err := ParsePrivateRoomId("private_1_2")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, int64(1), a)
	assert.Equal(t, int64(2), b)

	a, b, err = ParsePrivateRoomId("private_-5_3")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, int64(-5), a)
	assert.Equal(t, int64(3), b)

	_, _, err = ParsePrivateRoomId("public")
	assert.Error(t, err)
	_, _, err = ParsePrivateRoomId("private_x_y")
	assert.Error(t, err)
}

func TestPrivatePeer(t *testing.T) {
	peer, err := PrivatePeer("private_1_2", 1)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, int64(2), peer)

	peer, err = PrivatePeer("private_1_2", 2)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, int64(1), peer)
}

func TestMessagePrivate(t *testing.T) {
	assert.True(t, (&Message{RoomId: "private_1_2"}).Private())
	assert.False(t, (&Message{RoomId: PublicRoomId}).Private())
}
