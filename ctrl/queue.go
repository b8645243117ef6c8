package ctrl

import (
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// blockQueue is the fixed-capacity lookahead. Index 0 is the next block the
// train will enter.
type blockQueue struct {
	blocks [queueCap]QueuedBlock
	n      int
}

func (q *blockQueue) len() int { return q.n }

func (q *blockQueue) full() bool { return q.n == queueCap }

// push appends b, reporting false when the queue is already full.
func (q *blockQueue) push(b QueuedBlock) bool {
	if q.n >= queueCap {
		return false
	}
	q.blocks[q.n] = b
	q.n++
	return true
}

// pop removes and returns the head.
func (q *blockQueue) pop() (QueuedBlock, bool) {
	if q.n == 0 {
		return QueuedBlock{}, false
	}
	head := q.blocks[0]
	copy(q.blocks[:], q.blocks[1:q.n])
	q.n--
	q.blocks[q.n] = QueuedBlock{}
	return head, true
}

// find returns a pointer into the live queue for in-place updates, with the
// entry's position, or nil on a miss.
func (q *blockQueue) find(number int) (*QueuedBlock, int) {
	i := slices.IndexFunc(q.blocks[:q.n], func(b QueuedBlock) bool { return b.Number == number })
	if i == -1 {
		return nil, -1
	}
	return &q.blocks[i], i
}

// numbers lists the queued block numbers front to back.
func (q *blockQueue) numbers() []int {
	out := make([]int, q.n)
	for i := range out {
		out[i] = q.blocks[i].Number
	}
	return out
}

// view returns the live entries, front to back. The slice aliases queue
// storage and is only valid until the next mutation.
func (q *blockQueue) view() []QueuedBlock { return q.blocks[:q.n] }

// handleProgression applies the tick's wayside signals in a fixed order
// (transition edge, add, update) and then recomputes authority.
func (c *Controller) handleProgression(sensor SensorSnapshot) {
	if !c.lastEnteredSeen {
		c.lastEnteredSeen = true
		c.lastEntered = sensor.NextBlockEntered
		zap.S().Debugw("initial block-entered level", "train", c.trainID, "value", sensor.NextBlockEntered)
	} else if sensor.NextBlockEntered != c.lastEntered {
		c.transition()
		c.lastEntered = sensor.NextBlockEntered
	}

	if sensor.AddBlock && sensor.UpdateBlock {
		// One shared payload cannot address two distinct blocks.
		zap.S().Warnw("add and update raised in the same tick",
			"train", c.trainID, "block", sensor.Block.Number)
	}

	if sensor.AddBlock {
		if c.queue.full() {
			zap.S().Warnw("lookahead full, dropping new block",
				"train", c.trainID, "block", sensor.Block.Number)
		} else {
			c.addBlock(sensor.Block)
		}
	}

	if sensor.UpdateBlock {
		c.updateBlock(sensor.Block)
	}

	c.recalcAuthority()
}

// transition pops the queue head into the current-block slot.
func (c *Controller) transition() {
	next, ok := c.queue.pop()
	if !ok {
		zap.S().Warnw("block transition with empty lookahead",
			"train", c.trainID, "current", c.currentBlock)
		return
	}
	prev := c.currentBlock
	c.currentBlock = next.Number
	c.currentCommanded = next.CommandedSpeed
	c.currentAuthorized = next.Authorized
	if facts, ok := c.cat.LookupBlock(next.Number); ok {
		c.currentSpeedLimit = facts.SpeedLimitMPH
		c.currentUnderground = facts.Underground
	}
	c.distanceM = 0
	if c.stationWaiting {
		c.stationWaiting = false
		zap.S().Infow("dwell wait cleared, train moved on",
			"train", c.trainID, "block", c.currentBlock)
	}
	zap.S().Infow("entered block",
		"train", c.trainID, "from", prev, "to", c.currentBlock,
		"speed-limit-mph", c.currentSpeedLimit, "underground", c.currentUnderground,
		"queued", c.queue.numbers())
}

func (c *Controller) addBlock(sig BlockSignal) {
	qb := QueuedBlock{
		Number:         sig.Number,
		Authorized:     sig.Authorized,
		CommandedSpeed: sig.CommandedSpeed,
	}
	if facts, ok := c.cat.LookupBlock(sig.Number); ok {
		qb.LengthM = facts.LengthM
		qb.SpeedLimitMPH = facts.SpeedLimitMPH
		qb.Underground = facts.Underground
	} else {
		zap.S().Warnw("no catalog facts for new block, keeping provided data",
			"train", c.trainID, "block", sig.Number)
	}
	c.queue.push(qb)
	zap.S().Infow("queued block",
		"train", c.trainID, "block", sig.Number,
		"authorized", sig.Authorized, "commanded-speed", sig.CommandedSpeed,
		"depth", c.queue.len())
}

// updateBlock rewrites authorization and commanded speed in place, checking
// the current block before the queue.
func (c *Controller) updateBlock(sig BlockSignal) {
	if sig.Number == c.currentBlock {
		c.currentAuthorized = sig.Authorized
		c.currentCommanded = sig.CommandedSpeed
		zap.S().Infow("updated current block",
			"train", c.trainID, "block", sig.Number,
			"authorized", sig.Authorized, "commanded-speed", sig.CommandedSpeed)
		if c.stationWaiting && sig.Authorized {
			zap.S().Infow("block authorized after dwell, awaiting departure",
				"train", c.trainID, "block", sig.Number)
		}
		return
	}
	if qb, i := c.queue.find(sig.Number); qb != nil {
		qb.Authorized = sig.Authorized
		qb.CommandedSpeed = sig.CommandedSpeed
		zap.S().Infow("updated queued block",
			"train", c.trainID, "block", sig.Number, "position", i+1,
			"authorized", sig.Authorized, "commanded-speed", sig.CommandedSpeed)
		return
	}
	zap.S().Warnw("update for unknown block",
		"train", c.trainID, "block", sig.Number,
		"current", c.currentBlock, "queued", c.queue.numbers())
}
