// Package confirm implements the two-phase confirmation state machine
// guarding destructive reset commands: a prompt freezes the target
// tenant set, and only an explicit affirmative reply in the same
// conversation commits. Pending confirmations expire after a timeout
// and are never persisted, so a restart simply forgets them.
package confirm
