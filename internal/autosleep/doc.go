// Package autosleep reacts to group mute notices aimed at the bot
// itself: when the tenant has auto-sleep enabled, the muting group is
// added to the group block-list and every superuser is notified.
package autosleep
