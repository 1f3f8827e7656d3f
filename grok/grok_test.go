package grok

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileAndMatch(t *testing.T) {
	re, err := Compile(`%{WORD:first} %{WORD:second}`)
	require.NoError(t, err)

	captures, ok := Match(re, "hello world")
	require.True(t, ok)
	assert.Equal(t, "hello", captures["first"])
	assert.Equal(t, "world", captures["second"])
}

func TestMatchNoMatch(t *testing.T) {
	re, err := Compile(`%{INT:n}`)
	require.NoError(t, err)

	_, ok := Match(re, "not a number")
	assert.False(t, ok)
}

func TestCompileUnknownPattern(t *testing.T) {
	_, err := Compile(`%{NOPE}`)
	assert.Error(t, err)
}

func TestCompileNestedPatterns(t *testing.T) {
	re, err := Compile(`%{IPORHOST:host}:%{POSINT:port}`)
	require.NoError(t, err)

	captures, ok := Match(re, "10.0.0.1:8080")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", captures["host"])
	assert.Equal(t, "8080", captures["port"])
}

func TestSyslogBase(t *testing.T) {
	re, err := Compile(`%{SYSLOGBASE}`)
	require.NoError(t, err)

	line := `Oct 11 22:14:15 mymachine su: 'su root' failed for lonvick on /dev/pts/8`
	captures, ok := Match(re, line)
	require.True(t, ok)
	assert.Equal(t, "Oct 11 22:14:15", captures["timestamp"])
	assert.Equal(t, "mymachine", captures["logsource"])
}

func TestCommonApacheLog(t *testing.T) {
	re, err := Compile(`%{COMMONAPACHELOG}`)
	require.NoError(t, err)

	line := `127.0.0.1 - frank [10/Oct/2000:13:55:36 -0700] "GET /apache_pb.gif HTTP/1.0" 200 2326`
	captures, ok := Match(re, line)
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1", captures["clientip"])
	assert.Equal(t, "frank", captures["auth"])
	assert.Equal(t, "200", captures["response"])
	assert.Equal(t, "2326", captures["bytes"])
}
