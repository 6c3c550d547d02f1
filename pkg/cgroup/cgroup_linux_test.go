package cgroup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCgroupFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{
			name:    "v2 only",
			content: "0::/user.slice/user-1000.slice/session-2.scope\n",
			want:    "/user.slice/user-1000.slice/session-2.scope",
		},
		{
			name: "hybrid picks v2 line",
			content: "12:pids:/user.slice\n" +
				"1:name=systemd:/user.slice\n" +
				"0::/init.scope\n",
			want: "/init.scope",
		},
		{
			name:    "root group",
			content: "0::/\n",
			want:    "/",
		},
		{
			name:    "v1 only",
			content: "12:pids:/user.slice\n",
			wantErr: true,
		},
		{
			name:    "empty",
			content: "",
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseCgroupFile(strings.NewReader(tc.content))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseUint(t *testing.T) {
	v, err := parseUint([]byte(" 4096\n"))
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), v)

	_, err = parseUint([]byte("max\n"))
	assert.Error(t, err)
}

func TestDestroyNil(t *testing.T) {
	var g *Group
	assert.NoError(t, g.Destroy())
	assert.NoError(t, (&Group{}).Destroy())
}
