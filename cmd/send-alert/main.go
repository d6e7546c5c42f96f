package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

// send-alert posts a test message to the alert chat, for verifying bot
// credentials and chat wiring before running the daemon.

func main() {
	appID := os.Getenv("FEISHU_APP_ID")
	appSecret := os.Getenv("FEISHU_APP_SECRET")

	if appID == "" || appSecret == "" {
		fmt.Println("Error: FEISHU_APP_ID and FEISHU_APP_SECRET must be set")
		os.Exit(1)
	}

	chatID := os.Getenv("FEISHU_ALERT_CHAT_ID")
	message := "🔔 Test alert from vigil. If you can read this, delivery works."

	switch len(os.Args) {
	case 1:
	case 2:
		message = os.Args[1]
	default:
		chatID = os.Args[1]
		message = os.Args[2]
	}

	if chatID == "" {
		fmt.Println("Usage: send-alert [chat_id] [message]")
		fmt.Println("Set FEISHU_ALERT_CHAT_ID or pass the chat_id as the first argument")
		os.Exit(1)
	}

	// Create Lark client
	client := lark.NewClient(appID, appSecret)

	content := map[string]string{"text": message}
	contentJSON, _ := json.Marshal(content)

	// Send message
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := client.Im.Message.Create(context.Background(), req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if !resp.Success() {
		fmt.Printf("Error: %s\n", resp.Msg)
		os.Exit(1)
	}

	if resp.Data != nil && resp.Data.MessageId != nil {
		fmt.Printf("Alert sent, message id %s\n", *resp.Data.MessageId)
	} else {
		fmt.Println("Alert sent")
	}
}
