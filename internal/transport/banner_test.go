package transport

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBanner_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	sent, err := SendBanner(&buf, "skiff_0.1.0")
	require.NoError(t, err)
	require.Equal(t, "SSH-2.0-skiff_0.1.0", string(sent))
	require.Equal(t, "SSH-2.0-skiff_0.1.0\r\n", buf.String())

	got, err := ReadBanner(&buf)
	require.NoError(t, err)
	require.Equal(t, sent, got)
}

func TestBanner_DoesNotOverread(t *testing.T) {
	buf := bytes.NewBufferString("SSH-2.0-peer\r\n\x00\x00\x00\x01\x14")
	line, err := ReadBanner(buf)
	require.NoError(t, err)
	require.Equal(t, "SSH-2.0-peer", string(line))

	rest, err := io.ReadAll(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 1, 0x14}, rest)
}

func TestBanner_SkipsPreBannerLines(t *testing.T) {
	buf := strings.NewReader("welcome to skiffd\n\nno unauthorized access\nSSH-2.0-skiffd_1\r\n")
	line, err := ReadBanner(buf)
	require.NoError(t, err)
	require.Equal(t, "SSH-2.0-skiffd_1", string(line))
}

func TestBanner_BareLF(t *testing.T) {
	line, err := ReadBanner(strings.NewReader("SSH-2.0-peer\n"))
	require.NoError(t, err)
	require.Equal(t, "SSH-2.0-peer", string(line))
}

func TestBanner_LegacyProtoVersion(t *testing.T) {
	line, err := ReadBanner(strings.NewReader("SSH-1.99-oldserver\r\n"))
	require.NoError(t, err)
	require.Equal(t, "SSH-1.99-oldserver", string(line))
}

func TestBanner_RejectsBadVersionLines(t *testing.T) {
	for _, banner := range []string{
		"SSH-1.5-relic\r\n",
		"SSH-3.0-future\r\n",
		"SSH-2.0-\r\n",
		"SSH-2.0\r\n",
	} {
		_, err := ReadBanner(strings.NewReader(banner))
		require.ErrorIs(t, err, ErrBadBanner, banner)
	}
}

func TestBanner_RejectsOversizedLine(t *testing.T) {
	long := strings.Repeat("x", maxBannerLineLength+1) + "\n"
	_, err := ReadBanner(strings.NewReader(long))
	require.ErrorIs(t, err, ErrBadBanner)
}

func TestBanner_BoundsPreBannerLines(t *testing.T) {
	var b strings.Builder
	for i := 0; i < maxPreBannerLines-1; i++ {
		b.WriteString("spam\n")
	}
	banner := "SSH-2.0-late\r\n"

	line, err := ReadBanner(strings.NewReader(b.String() + banner))
	require.NoError(t, err)
	require.Equal(t, "SSH-2.0-late", string(line))

	_, err = ReadBanner(strings.NewReader("spam\n" + b.String() + banner))
	require.ErrorIs(t, err, ErrBadBanner)
}

func TestBanner_EOFBeforeBanner(t *testing.T) {
	_, err := ReadBanner(strings.NewReader("almost a banner"))
	require.ErrorIs(t, err, io.EOF)
}

func TestSendBanner_RejectsBadSoftware(t *testing.T) {
	for _, software := range []string{"", "has space", "tab\tbed", "line\nbreak"} {
		_, err := SendBanner(io.Discard, software)
		require.ErrorIs(t, err, ErrBadBanner, software)
	}
}
