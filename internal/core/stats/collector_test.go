package stats

import (
	"sync"
	"testing"

	"github.com/asinka/go-asinka/pkg/protocolids"
	"github.com/asinka/go-asinka/pkg/types"
)

func TestCollectorChannelMeters(t *testing.T) {
	c := NewCollector()

	c.LogMessageIn(protocolids.SysSync, 100)
	c.LogMessageIn(protocolids.SysSync, 50)
	c.LogMessageOut(protocolids.SysSync, 30)
	c.LogMessageOut(protocolids.SysEvent, 10)

	snap := c.Snapshot()

	syncStats := snap.Channels[protocolids.SysSync.String()]
	if syncStats.MessagesIn != 2 || syncStats.BytesIn != 150 {
		t.Errorf("sync in = (%d msgs, %d bytes), want (2, 150)",
			syncStats.MessagesIn, syncStats.BytesIn)
	}
	if syncStats.MessagesOut != 1 || syncStats.BytesOut != 30 {
		t.Errorf("sync out = (%d msgs, %d bytes), want (1, 30)",
			syncStats.MessagesOut, syncStats.BytesOut)
	}

	eventStats := snap.Channels[protocolids.SysEvent.String()]
	if eventStats.MessagesOut != 1 || eventStats.BytesOut != 10 {
		t.Errorf("event out = (%d msgs, %d bytes), want (1, 10)",
			eventStats.MessagesOut, eventStats.BytesOut)
	}
}

func TestCollectorNegativeBytesIgnored(t *testing.T) {
	c := NewCollector()
	c.LogMessageIn(protocolids.SysSync, -1)

	snap := c.Snapshot()
	if got := snap.Channels[protocolids.SysSync.String()]; got.MessagesIn != 0 {
		t.Errorf("negative byte count recorded: %+v", got)
	}
}

func TestCollectorDropCounters(t *testing.T) {
	c := NewCollector()

	c.AddStaleUpdate()
	c.AddStaleUpdate()
	c.AddChangeDrop()
	c.AddEventDrop()
	c.AddDupEvent()
	c.AddSessionOpened()
	c.AddSessionOpened()
	c.AddSessionClosed()

	snap := c.Snapshot()
	if snap.StaleUpdates != 2 {
		t.Errorf("StaleUpdates = %d, want 2", snap.StaleUpdates)
	}
	if snap.ChangeDrops != 1 || snap.EventDrops != 1 || snap.DupEvents != 1 {
		t.Errorf("drop counters = (%d, %d, %d), want (1, 1, 1)",
			snap.ChangeDrops, snap.EventDrops, snap.DupEvents)
	}
	if snap.SessionsOpened != 2 || snap.SessionsClosed != 1 {
		t.Errorf("sessions = (%d opened, %d closed), want (2, 1)",
			snap.SessionsOpened, snap.SessionsClosed)
	}
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.LogMessageIn(types.ChannelID("chan"), 1)
				c.AddStaleUpdate()
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if got := snap.Channels["chan"].MessagesIn; got != 8000 {
		t.Errorf("MessagesIn = %d, want 8000", got)
	}
	if snap.StaleUpdates != 8000 {
		t.Errorf("StaleUpdates = %d, want 8000", snap.StaleUpdates)
	}
}
