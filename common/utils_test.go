package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrim0xPrefix(t *testing.T) {
	assert.Equal(t, "abcd", Trim0xPrefix("0xabcd"))
	assert.Equal(t, "abcd", Trim0xPrefix("0Xabcd"))
	assert.Equal(t, "abcd", Trim0xPrefix("abcd"))
}

func TestPrepend0xPrefix(t *testing.T) {
	assert.Equal(t, "0xabcd", Prepend0xPrefix("abcd"))
	assert.Equal(t, "0xabcd", Prepend0xPrefix("0xabcd"))
}

func TestIsHexStr(t *testing.T) {
	assert.True(t, IsHexStr("00ffAA"))
	assert.True(t, IsHexStr(""))
	assert.False(t, IsHexStr("0x00"))
	assert.False(t, IsHexStr("xyz"))
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "0xdeadbeef...deadbeef", Shorten("0xdeadbeefdeadbeefdeadbeefdeadbeef", 8))
	assert.Equal(t, "0xabcd", Shorten("abcd", 8))
}