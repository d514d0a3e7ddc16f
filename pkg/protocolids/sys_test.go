package protocolids

import (
	"testing"

	"github.com/asinka/go-asinka/pkg/types"
)

func TestIsSystemChannel(t *testing.T) {
	tests := []struct {
		id   types.ChannelID
		want bool
	}{
		{SysHandshake, true},
		{SysSync, true},
		{SysEvent, true},
		{SysHeartbeat, true},
		{types.ChannelID("/other/sys/sync/1.0.0"), false},
		{types.ChannelID(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			if got := IsSystemChannel(tt.id); got != tt.want {
				t.Errorf("IsSystemChannel(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestProtocolSupported(t *testing.T) {
	if !ProtocolSupported(ProtocolV1) {
		t.Errorf("ProtocolSupported(%q) = false, want true", ProtocolV1)
	}
	if ProtocolSupported("asinka-v2") {
		t.Error("ProtocolSupported(asinka-v2) = true, want false")
	}
}

func TestSupportedProtocolsCopy(t *testing.T) {
	a := SupportedProtocols()
	a[0] = "mutated"

	b := SupportedProtocols()
	if b[0] != ProtocolV1 {
		t.Errorf("SupportedProtocols shares backing array: %q", b[0])
	}
}

func TestAllChannelsUnique(t *testing.T) {
	seen := make(map[types.ChannelID]bool)
	for _, id := range AllChannels() {
		if seen[id] {
			t.Errorf("duplicate channel ID %q", id)
		}
		seen[id] = true
		if !IsSystemChannel(id) {
			t.Errorf("channel %q is not under %q", id, SysPrefix)
		}
	}
}
