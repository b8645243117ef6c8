package ctrl

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFirstToggleObservationIsNotATransition(t *testing.T) {
	c, clk := newController(t)

	sensor := SensorSnapshot{CabinTempF: 72, NextBlockEntered: true}
	tick(c, clk, sensor, autoDriver())
	if c.CurrentBlock() != 10 {
		t.Fatalf("first observation transitioned to %d", c.CurrentBlock())
	}

	tick(c, clk, sensor, autoDriver())
	if c.CurrentBlock() != 10 {
		t.Fatalf("steady toggle transitioned to %d", c.CurrentBlock())
	}

	sensor.NextBlockEntered = false
	tick(c, clk, sensor, autoDriver())
	if c.CurrentBlock() != 11 {
		t.Fatalf("toggle edge did not transition, still on %d", c.CurrentBlock())
	}
}

func TestTransitionsDrainTheQueue(t *testing.T) {
	c, clk := newController(t)

	sensor := SensorSnapshot{CabinTempF: 72}
	tick(c, clk, sensor, autoDriver())

	for i, want := range []int{11, 12, 13, 14} {
		sensor.NextBlockEntered = i%2 == 0
		tick(c, clk, sensor, autoDriver())
		if c.CurrentBlock() != want {
			t.Fatalf("transition %d: block = %d, want %d", i+1, c.CurrentBlock(), want)
		}
	}
	if got := len(c.Lookahead()); got != 0 {
		t.Fatalf("queue not drained, %d left", got)
	}

	// A further toggle with nothing queued is refused.
	sensor.NextBlockEntered = true
	tick(c, clk, sensor, autoDriver())
	if c.CurrentBlock() != 14 {
		t.Errorf("empty-queue transition moved to %d", c.CurrentBlock())
	}
}

func TestTransitionRefreshesBlockContext(t *testing.T) {
	c, clk := newController(t)

	sensor := SensorSnapshot{CabinTempF: 72}
	tick(c, clk, sensor, autoDriver())
	sensor.NextBlockEntered = true
	tick(c, clk, sensor, autoDriver())

	if c.CurrentBlock() != 11 {
		t.Fatalf("block = %d, want 11", c.CurrentBlock())
	}
	if c.currentSpeedLimit != 30 {
		t.Errorf("speed limit = %v, want 30", c.currentSpeedLimit)
	}
	if c.distanceM != 0 {
		t.Errorf("distance = %v after transition, want 0", c.distanceM)
	}
	if !c.currentAuthorized || c.currentCommanded != 2 {
		t.Errorf("signal state = %v/%d, want true/2", c.currentAuthorized, c.currentCommanded)
	}
}

func TestAddWhileFullDrops(t *testing.T) {
	c, clk := newController(t)

	before := c.Lookahead()
	sensor := SensorSnapshot{
		CabinTempF: 72,
		AddBlock:   true,
		Block:      BlockSignal{Number: 15, CommandedSpeed: 1, Authorized: true},
	}
	tick(c, clk, sensor, autoDriver())
	if diff := cmp.Diff(before, c.Lookahead()); diff != "" {
		t.Errorf("full queue changed by add (-before +after):\n%s", diff)
	}
}

func TestAddFillsCatalogFacts(t *testing.T) {
	c, clk := newController(t)

	// Free a slot, then add block 15.
	sensor := SensorSnapshot{CabinTempF: 72}
	tick(c, clk, sensor, autoDriver())
	sensor.NextBlockEntered = true
	tick(c, clk, sensor, autoDriver())

	sensor.AddBlock = true
	sensor.Block = BlockSignal{Number: 15, CommandedSpeed: 1, Authorized: true}
	tick(c, clk, sensor, autoDriver())

	queue := c.Lookahead()
	if len(queue) != 4 {
		t.Fatalf("queue length = %d, want 4", len(queue))
	}
	want := QueuedBlock{
		Number:         15,
		LengthM:        100,
		SpeedLimitMPH:  30,
		Authorized:     true,
		CommandedSpeed: 1,
	}
	if diff := cmp.Diff(want, queue[3]); diff != "" {
		t.Errorf("tail entry mismatch (-want +got):\n%s", diff)
	}
}

func TestAddUnknownBlockKeepsProvided(t *testing.T) {
	c, clk := newController(t)

	sensor := SensorSnapshot{CabinTempF: 72}
	tick(c, clk, sensor, autoDriver())
	sensor.NextBlockEntered = true
	tick(c, clk, sensor, autoDriver())

	sensor.AddBlock = true
	sensor.Block = BlockSignal{Number: 99, CommandedSpeed: 2, Authorized: true}
	tick(c, clk, sensor, autoDriver())

	queue := c.Lookahead()
	tail := queue[len(queue)-1]
	if tail.Number != 99 || tail.LengthM != 0 || tail.CommandedSpeed != 2 {
		t.Errorf("unknown block entry = %+v", tail)
	}
}

func TestUpdateCurrentBlock(t *testing.T) {
	c, clk := newController(t)

	sensor := SensorSnapshot{
		CabinTempF:  72,
		UpdateBlock: true,
		Block:       BlockSignal{Number: 10, CommandedSpeed: 1, Authorized: false},
	}
	tick(c, clk, sensor, autoDriver())

	if c.currentAuthorized || c.currentCommanded != 1 {
		t.Errorf("current signal state = %v/%d, want false/1", c.currentAuthorized, c.currentCommanded)
	}
	if c.AuthorityYd() != 0 {
		t.Errorf("authority = %v on unauthorized block, want 0", c.AuthorityYd())
	}
}

func TestUpdateQueuedBlockInPlace(t *testing.T) {
	c, clk := newController(t)

	sensor := SensorSnapshot{
		CabinTempF:  72,
		UpdateBlock: true,
		Block:       BlockSignal{Number: 13, CommandedSpeed: 3, Authorized: false},
	}
	tick(c, clk, sensor, autoDriver())

	queue := c.Lookahead()
	if len(queue) != 4 {
		t.Fatalf("queue length = %d, want 4", len(queue))
	}
	entry := queue[2]
	if entry.Number != 13 || entry.Authorized || entry.CommandedSpeed != 3 {
		t.Errorf("queued entry = %+v, want 13/false/3", entry)
	}
}

func TestUpdateUnknownBlockIsIgnored(t *testing.T) {
	c, clk := newController(t)

	before := c.Lookahead()
	sensor := SensorSnapshot{
		CabinTempF:  72,
		UpdateBlock: true,
		Block:       BlockSignal{Number: 99, CommandedSpeed: 3, Authorized: false},
	}
	tick(c, clk, sensor, autoDriver())

	if diff := cmp.Diff(before, c.Lookahead()); diff != "" {
		t.Errorf("queue changed by unknown update (-before +after):\n%s", diff)
	}
	if !c.currentAuthorized {
		t.Error("current block touched by unknown update")
	}
}

func TestAddAndUpdateSameTick(t *testing.T) {
	c, clk := newController(t)

	sensor := SensorSnapshot{CabinTempF: 72}
	tick(c, clk, sensor, autoDriver())
	sensor.NextBlockEntered = true
	tick(c, clk, sensor, autoDriver())

	// Both flags with one payload: the block is added, then the update
	// finds it and rewrites it in place.
	sensor.AddBlock = true
	sensor.UpdateBlock = true
	sensor.Block = BlockSignal{Number: 15, CommandedSpeed: 3, Authorized: true}
	tick(c, clk, sensor, autoDriver())

	queue := c.Lookahead()
	if len(queue) != 4 {
		t.Fatalf("queue length = %d, want 4", len(queue))
	}
	tail := queue[3]
	if tail.Number != 15 || tail.CommandedSpeed != 3 || !tail.Authorized {
		t.Errorf("tail entry = %+v", tail)
	}
}
