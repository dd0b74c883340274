// Package onebot is a minimal OneBot v11 client over WebSocket. It
// reads raw events, classifies them into the gate's event kinds, and
// exposes the few API calls blockgate needs: sending replies and
// notifications, and listing the group/friend rosters.
package onebot
