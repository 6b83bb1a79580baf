package imap

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Structs

var stringTests = []struct {
	chunks   []string
	kind     StringKind
	status   StringStatus
	data     string
	consumed []int
}{
	{[]string{"{11}\r\nHello World"}, KindLiteral, StatusComplete, "Hello World", []int{17}},
	{[]string{"{11}\r\nHello World!!!"}, KindLiteral, StatusComplete, "Hello World", []int{17}},
	{[]string{"{11}\r\n", "Hello World"}, KindLiteral, StatusComplete, "Hello World", []int{6, 11}},
	{[]string{"{11}\r\n"}, KindLiteral, StatusIncomplete, "", []int{6}},
	{[]string{"{11}\r", "\nHello", " World"}, KindLiteral, StatusComplete, "Hello World", []int{5, 6, 6}},
	{[]string{"{5+}\r\nHello"}, KindLiteralNonSync, StatusComplete, "Hello", []int{11}},
	{[]string{"{4}\r\na\r\nb"}, KindLiteral, StatusComplete, "a\r\nb", []int{9}},
	{[]string{"{0}\r\n"}, KindLiteral, StatusComplete, "", []int{5}},
	{[]string{"\"quoted", " finish\" aaa"}, KindQuoted, StatusComplete, "quoted finish", []int{7, 8}},
	{[]string{"  \"abc\""}, KindQuoted, StatusComplete, "abc", []int{7}},
	{[]string{"\"a\\\"b\\\\c\""}, KindQuoted, StatusComplete, "a\"b\\c", []int{9}},
	{[]string{"\"a\r\nb\""}, KindQuoted, StatusComplete, "a\r\nb", []int{6}},
	{[]string{"\"a\\nb\""}, KindQuoted, StatusComplete, "a\\nb", []int{6}},
	{[]string{"\"a\\", "nb\" c"}, KindQuoted, StatusComplete, "a\\nb", []int{3, 3}},
	{[]string{"\"a\\", "\"b\""}, KindQuoted, StatusComplete, "a\"b", []int{3, 3}},
	{[]string{"\"open"}, KindQuoted, StatusIncomplete, "open", []int{5}},
}

var malformedStringTests = []string{
	"",
	"abc",
	"{abc}",
	"{}",
	"{+}",
	"{1x",
	"{3}ab",
	"{99999999999999999999}\r\n",
}

// Functions

// TestStringFeed executes a white-box table test on
// feeding complete and chunked strings.
func TestStringFeed(t *testing.T) {

	for _, tt := range stringTests {

		var str String

		for i, chunk := range tt.chunks {

			n, err := str.Feed([]byte(chunk))
			require.NoError(t, err, "chunks %q", tt.chunks)
			assert.Equal(t, tt.consumed[i], n, "consumed bytes of chunk %d of %q", i, tt.chunks)
		}

		assert.Equal(t, tt.kind, str.Kind(), "kind of %q", tt.chunks)
		assert.Equal(t, tt.status, str.Status(), "status of %q", tt.chunks)
		assert.Equal(t, tt.data, string(str.Bytes()), "data of %q", tt.chunks)
		assert.LessOrEqual(t, str.Len(), str.Declared())
	}
}

// TestStringIncompleteUntilPayload checks that a literal
// only completes once its payload arrived.
func TestStringIncompleteUntilPayload(t *testing.T) {

	var str String

	_, err := str.Feed([]byte("{11}\r\n"))
	require.NoError(t, err)
	assert.Equal(t, StatusIncomplete, str.Status())
	assert.True(t, str.HeaderDone())
	assert.Equal(t, 11, str.Declared())
	assert.Equal(t, 0, str.Len())

	_, err = str.Feed([]byte("Hello World"))
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, str.Status())
	assert.Equal(t, 11, str.Len())

	// Further input is left alone.
	n, err := str.Feed([]byte("more"))
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, "Hello World", string(str.Bytes()))
}

// TestStringSplitHeader checks that a literal header cut
// before its closing brace is not consumed.
func TestStringSplitHeader(t *testing.T) {

	var str String

	n, err := str.Feed([]byte("{1"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, KindUnspecified, str.Kind())
	assert.Equal(t, StatusIncomplete, str.Status())

	n, err = str.Feed([]byte("{12+"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = str.Feed([]byte("{12+}\r\nabc"))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, KindLiteralNonSync, str.Kind())
	assert.Equal(t, 12, str.Declared())
}

// TestStringMalformed checks that malformed input
// leaves the string invalid.
func TestStringMalformed(t *testing.T) {

	for _, in := range malformedStringTests {

		var str String

		_, err := str.Feed([]byte(in))
		assert.Error(t, err, "input %q", in)
		assert.True(t, errors.Is(err, ErrMalformedString), "input %q", in)
		assert.Equal(t, StatusInvalid, str.Status(), "input %q", in)

		// Invalid strings stay invalid.
		_, err = str.Feed([]byte("\"ok\""))
		assert.Error(t, err, "input %q", in)
		assert.Equal(t, StatusInvalid, str.Status(), "input %q", in)
	}
}

// TestStringReset checks that a reset string
// detects its kind anew.
func TestStringReset(t *testing.T) {

	var str String

	_, err := str.Feed([]byte("{abc}"))
	require.Error(t, err)

	str.Reset()
	assert.Equal(t, StatusIncomplete, str.Status())
	assert.NoError(t, str.Err())

	_, err = str.Feed([]byte("\"fine\""))
	require.NoError(t, err)
	assert.Equal(t, KindQuoted, str.Kind())
	assert.Equal(t, "fine", string(str.Bytes()))
}

// TestAppendString checks both wire forms.
func TestAppendString(t *testing.T) {

	assert.Equal(t, "\"Hello\"", string(AppendString(nil, []byte("Hello"), KindQuoted)))
	assert.Equal(t, "\"a\\\"b\\\\\"", string(AppendString(nil, []byte("a\"b\\"), KindQuoted)))
	assert.Equal(t, "{5}\r\nHello", string(AppendString(nil, []byte("Hello"), KindLiteral)))
	assert.Equal(t, "{5+}\r\nHello", string(AppendString(nil, []byte("Hello"), KindLiteralNonSync)))
	assert.Equal(t, "{3}\r\na\r\n", string(AppendString(nil, []byte("a\r\n"), KindQuoted)))
	assert.Equal(t, "", string(AppendString(nil, []byte("Hello"), KindUnspecified)))

	var str String
	_, err := str.Feed([]byte("{5+}\r\nHello"))
	require.NoError(t, err)
	assert.Equal(t, "{5+}\r\nHello", string(str.Raw()))

	var empty String
	assert.Equal(t, "{0}\r\n", string(empty.Raw()))
}
