package discord

import "errors"

var ErrChannelNotFound = errors.New("discord channel not found")

type FileMessage struct {
	ChannelID string
	Content   string
	Filename  string
	FileBody  []byte
}

// Client posts batch notifications to a Discord channel.
type Client interface {
	SendChannelMessage(channelID, content string) error
	SendChannelMessageWithFile(msg FileMessage) error
	Close() error
}
