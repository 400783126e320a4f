// internal/mcq/chain.go
package mcq

// ChainLimit is the maximum number of consecutive clarification prompts a
// user can be subjected to before the engine must answer directly.
const ChainLimit = 2

// ChainCounter tracks consecutive MCQ prompts issued without an intervening
// fully-resolved turn. Owned by exactly one conversation; not safe for
// sharing across conversations.
type ChainCounter struct {
	consecutive int
}

// RecordPrompt notes that a clarification prompt was issued.
func (c *ChainCounter) RecordPrompt() {
	c.consecutive++
}

// RecordResolvedTurn notes a fully-resolved (non-MCQ) turn, breaking the
// chain.
func (c *ChainCounter) RecordResolvedTurn() {
	c.consecutive = 0
}

// ResetForNewQuery is called when the user sends a new top-level query; MCQ
// answers do not reset the chain.
func (c *ChainCounter) ResetForNewQuery() {
	c.consecutive = 0
}

// ShouldSuppress reports whether a further prompt would exceed the limit, in
// which case the orchestrator falls back to a best-effort direct answer.
func (c *ChainCounter) ShouldSuppress() bool {
	return c.consecutive >= ChainLimit
}

// Count exposes the current chain length for diagnostics.
func (c *ChainCounter) Count() int {
	return c.consecutive
}
