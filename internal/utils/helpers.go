package utils

import (
	"fmt"

	"github.com/gotd/td/constant"
)

// BotAPIChannelID converts a raw Telegram channel ID to BotAPI-style ID
// (-100<id>). gotgproto stores peers using BotAPI-format keys, so lookups
// must use this format; stream URLs carry it too.
func BotAPIChannelID(rawChannelID int64) int64 {
	var id constant.TDLibPeerID
	id.Channel(rawChannelID)
	return int64(id)
}

// RawChannelID is the inverse of BotAPIChannelID. IDs already in raw form
// pass through unchanged, so both URL spellings resolve the same channel.
func RawChannelID(id int64) int64 {
	peer := constant.TDLibPeerID(id)
	if peer.IsChannel() {
		return peer.ToPlain()
	}
	if id < 0 {
		return -id
	}
	return id
}

// TimeFormat renders a second count as a compact uptime string.
func TimeFormat(seconds uint64) string {
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	}
	return fmt.Sprintf("%dm %ds", minutes, secs)
}
