package discord

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/callinsight/internal/discord"
)

// maxMessageLength is Discord's limit on message content.
const maxMessageLength = 2000

// Client talks to the Discord REST API only; sending messages does not need
// a gateway connection.
type Client struct {
	session *discordgo.Session
}

func NewClient(token string) (discordpkg.Client, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	return &Client{session: s}, nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func (c *Client) SendChannelMessage(channelID, content string) error {
	_, err := c.session.ChannelMessageSend(channelID, truncateContent(content))
	return translateError(err)
}

func (c *Client) SendChannelMessageWithFile(msg discordpkg.FileMessage) error {
	_, err := c.session.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
		Content: truncateContent(msg.Content),
		Files: []*discordgo.File{
			{Name: msg.Filename, ContentType: "text/plain", Reader: bytes.NewReader(msg.FileBody)},
		},
	})
	return translateError(err)
}

func truncateContent(content string) string {
	if utf8.RuneCountInString(content) <= maxMessageLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:maxMessageLength-1]) + "…"
}

func translateError(err error) error {
	if isRESTNotFound(err) {
		return fmt.Errorf("%w: %w", discordpkg.ErrChannelNotFound, err)
	}
	return err
}

func isRESTNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusNotFound
}

// NoopClient is used when no Discord bot is configured.
type NoopClient struct{}

func (NoopClient) SendChannelMessage(string, string) error                 { return nil }
func (NoopClient) SendChannelMessageWithFile(discordpkg.FileMessage) error { return nil }
func (NoopClient) Close() error                                            { return nil }
