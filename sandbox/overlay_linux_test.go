package sandbox

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanMountsForOverlayRoot(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{
			name: "plain ext4 root",
			content: "/dev/sda1 / ext4 rw,relatime 0 0\n" +
				"proc /proc proc rw,nosuid,nodev,noexec 0 0\n",
			want: false,
		},
		{
			name: "container overlay root",
			content: "overlay / overlay rw,relatime,lowerdir=/a,upperdir=/b,workdir=/c 0 0\n" +
				"proc /proc proc rw 0 0\n",
			want: true,
		},
		{
			name: "overlay elsewhere only",
			content: "/dev/nvme0n1p2 / btrfs rw 0 0\n" +
				"overlay /var/lib/docker/overlay2/x/merged overlay rw 0 0\n",
			want: false,
		},
		{
			name:    "empty",
			content: "",
			want:    false,
		},
		{
			name:    "short line ignored",
			content: "garbage\n",
			want:    false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := scanMountsForOverlayRoot(strings.NewReader(tc.content))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWireConfigRoundTrip(t *testing.T) {
	in := &WireConfig{
		Command:  []string{"sh", "-c", "true"},
		Cwd:      "/home/u",
		Hostname: "poof",
		Upper:    "/tmp/poof-x/upper",
		Work:     "/tmp/poof-x/work",
		Merged:   "/tmp/poof-x/merged",
		UserNS:   true,
	}
	b, err := in.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(b), `"user_ns":true`)

	var out WireConfig
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, *in, out)
}

func TestReadWireConfigBadFd(t *testing.T) {
	// fd 63 should not be an open descriptor carrying JSON
	_, err := readWireConfig(63)
	assert.Error(t, err)
}
