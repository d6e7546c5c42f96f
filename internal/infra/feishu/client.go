package feishu

import (
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
)

// CommandHandler is the callback for text messages addressed to the bot
type CommandHandler func(chatID, msgID, text string)

// AckHandler is the callback for emoji reactions on bot messages
type AckHandler func(messageID string)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onCommand CommandHandler
	onAck     AckHandler
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
	}
}

// OnCommand sets the text message handler
func (c *Client) OnCommand(handler CommandHandler) {
	c.onCommand = handler
}

// OnAck sets the reaction handler
func (c *Client) OnAck(handler AckHandler) {
	c.onAck = handler
}

// Start connects to Feishu via WebSocket and listens for messages and
// reactions. Blocks until Stop or a connection error.
func (c *Client) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())

	// Handlers must return quickly so the SDK can send its ACK, otherwise
	// Feishu retries the event delivery
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(event)
			return nil
		}).
		OnP2MessageReactionCreatedV1(func(ctx context.Context, event *larkim.P2MessageReactionCreatedV1) error {
			go c.handleReaction(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	fmt.Println("[Feishu] Starting WebSocket connection...")

	return c.wsCli.Start(c.ctx)
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// handleMessage processes incoming text messages
func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	msg := event.Event.Message
	if msg == nil || msg.MessageType == nil || msg.Content == nil {
		return
	}

	// Ignore the bot's own messages
	if event.Event.Sender != nil && event.Event.Sender.SenderType != nil {
		if *event.Event.Sender.SenderType == "app" {
			return
		}
	}

	if *msg.MessageType != "text" {
		return
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(*msg.Content), &parsed); err != nil {
		fmt.Printf("[Feishu] Failed to parse content: %v\n", err)
		return
	}

	chatID := *msg.ChatId
	msgID := *msg.MessageId

	fmt.Printf("[Feishu] Received message from chat %s: %s\n", chatID, truncate(parsed.Text, 50))

	if c.onCommand != nil {
		c.onCommand(chatID, msgID, parsed.Text)
	}
}

// handleReaction processes emoji reactions added to messages
func (c *Client) handleReaction(event *larkim.P2MessageReactionCreatedV1) {
	if event.Event == nil || event.Event.MessageId == nil {
		return
	}

	// Ignore reactions added by the bot itself
	if event.Event.OperatorType != nil && *event.Event.OperatorType == "app" {
		return
	}

	messageID := *event.Event.MessageId
	fmt.Printf("[Feishu] Reaction on message %s\n", messageID)

	if c.onAck != nil {
		c.onAck(messageID)
	}
}

// SendText sends a text message to a chat and returns the message ID
func (c *Client) SendText(ctx context.Context, chatID, text string) (string, error) {
	content := map[string]string{"text": text}
	contentJSON, _ := json.Marshal(content)

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("send message error: %s", resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	fmt.Printf("[Feishu] Message sent to %s\n", chatID)
	return messageID, nil
}

// AddReaction adds an emoji reaction to a message
func (c *Client) AddReaction(ctx context.Context, messageID, emojiType string) error {
	req := larkim.NewCreateMessageReactionReqBuilder().
		MessageId(messageID).
		Body(larkim.NewCreateMessageReactionReqBodyBuilder().
			ReactionType(larkim.NewEmojiBuilder().EmojiType(emojiType).Build()).
			Build()).
		Build()

	resp, err := c.larkCli.Im.MessageReaction.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("add reaction failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("add reaction error: %s", resp.Msg)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
