// Package board maps the detailed stage vocabulary onto the coarse columns
// shown on the shop floor board.
//
// The mapping is a static table rather than something derived from stage
// ranks: how stages are grouped for display is a presentation choice. The
// forward direction (detailed to board) is total, falling back to the first
// column for codes the table does not mention. The reverse direction is
// one-to-many; Canonical picks the lowest-ranked detailed stage of a column
// as the target when a card is dropped onto it.
package board
